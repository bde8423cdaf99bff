// Package main provides the s2store CLI: create, inspect and query satellite
// S2 cell id range store files.
//
// Usage:
//
//	s2store create --out FILE --level N --prefix-bits N --suffix-bits N --entry-bits N RANGES
//	s2store info FILE [--digest]
//	s2store lookup FILE CELLID...
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/satgeo/go-s2store/s2store"
)

var CLI struct {
	Verbose bool `name:"verbose" short:"v" help:"Enable debug logging."`

	Create CreateCmd `cmd:"" help:"Write a range store from a ranges file."`
	Info   InfoCmd   `cmd:"" help:"Print a store's format and table occupancy."`
	Lookup LookupCmd `cmd:"" help:"Point lookups against a store."`
}

// CreateCmd writes a new store from a text file of "start,end" hex cell id
// pairs, one per line, sorted and non-overlapping.
type CreateCmd struct {
	Out         string `name:"out" short:"o" required:"" help:"Destination store path." type:"path"`
	Level       uint8  `name:"level" required:"" help:"S2 level of every cell id."`
	PrefixBits  uint8  `name:"prefix-bits" required:"" help:"Prefix bit count."`
	SuffixBits  uint8  `name:"suffix-bits" required:"" help:"Suffix bit count."`
	EntryBits   uint8  `name:"entry-bits" required:"" help:"Suffix table entry bit count."`
	BlockOffset uint32 `name:"block-offset" default:"1" help:"Suffix table block id offset."`
	AllowedList bool   `name:"allowed-list" help:"Mark the store as an allowed list."`
	Ranges      string `arg:"" help:"Ranges file, 'startHex,endHex' per line." type:"existingfile"`
}

func (c *CreateCmd) Run(log logger.Logger) error {
	format, err := s2store.NewFileFormat(
		c.Level, c.PrefixBits, c.SuffixBits, c.EntryBits, c.BlockOffset, c.AllowedList)
	if err != nil {
		return err
	}
	ranges, err := readRangesFile(c.Ranges)
	if err != nil {
		return err
	}

	// Write to a temporary sibling and rename, so a failed run never leaves a
	// half-written store at the destination.
	tmp := c.Out + "." + uuid.NewString() + ".tmp"
	w, err := s2store.NewWriter(tmp, format, s2store.WithWriterLogger(log))
	if err != nil {
		return err
	}
	if err = w.AddRanges(ranges); err != nil {
		_ = w.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err = w.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, c.Out); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	log.Infof("wrote %s: %d ranges, level %d", c.Out, len(ranges), c.Level)
	return nil
}

func readRangesFile(path string) ([]s2store.Range, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ranges []s2store.Range
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		start, end, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected 'startHex,endHex'", path, line)
		}
		r := s2store.Range{}
		if r.Start, err = parseCellID(start); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if r.End, err = parseCellID(end); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		ranges = append(ranges, r)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return ranges, nil
}

func parseCellID(s string) (s2store.CellID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cell id %q: %w", s, err)
	}
	return s2store.CellID(v), nil
}

// InfoCmd prints the descriptor and per-prefix occupancy of a store.
type InfoCmd struct {
	File   string `arg:"" help:"Store path." type:"existingfile"`
	Digest bool   `name:"digest" help:"Also print the BLAKE3 digest of the file."`
}

func (c *InfoCmd) Run(log logger.Logger) error {
	r, err := s2store.Open(c.File, s2store.WithReaderLogger(log))
	if err != nil {
		return err
	}
	defer r.Close()

	format, err := r.FileFormat()
	if err != nil {
		return err
	}
	fmt.Printf("level:            %d\n", format.Level())
	fmt.Printf("prefix bits:      %d\n", format.PrefixBitCount())
	fmt.Printf("suffix bits:      %d\n", format.SuffixBitCount())
	fmt.Printf("entry bits:       %d\n", format.EntryBitCount())
	fmt.Printf("block id offset:  %d\n", format.TableBlockIDOffset())
	fmt.Printf("allowed list:     %t\n", format.IsAllowedList())

	occupied := 0
	entries := uint64(0)
	for prefix := uint32(0); ; prefix++ {
		info, err := r.SuffixTableExtraInfo(prefix)
		if err != nil {
			return err
		}
		if !info.IsEmpty() {
			occupied++
			entries += uint64(info.EntryCount)
			fmt.Printf("prefix %#x: %d entries\n", info.Prefix, info.EntryCount)
		}
		if prefix == format.MaxPrefixValue() {
			break
		}
	}
	fmt.Printf("occupied tables:  %d of %d\n", occupied, uint64(format.MaxPrefixValue())+1)
	fmt.Printf("total entries:    %d\n", entries)

	if c.Digest {
		raw, err := os.ReadFile(c.File)
		if err != nil {
			return err
		}
		sum := blake3.Sum256(raw)
		fmt.Printf("blake3:           %s\n", hex.EncodeToString(sum[:]))
	}
	return nil
}

// LookupCmd resolves the covering range, if any, for each queried cell id.
type LookupCmd struct {
	File    string   `arg:"" help:"Store path." type:"existingfile"`
	CellIDs []string `arg:"" help:"Hex cell ids to look up."`
	Mmap    bool     `name:"mmap" help:"Memory map the store."`
}

func (c *LookupCmd) Run(log logger.Logger) error {
	opts := []s2store.ReaderOption{s2store.WithReaderLogger(log)}
	if c.Mmap {
		opts = append(opts, s2store.WithMmap())
	}
	r, err := s2store.Open(c.File, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, raw := range c.CellIDs {
		cellID, err := parseCellID(raw)
		if err != nil {
			return err
		}
		found, ok, err := r.FindEntryByCellID(cellID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%#016x: not covered\n", uint64(cellID))
			continue
		}
		fmt.Printf("%#016x: [%#016x, %#016x)\n", uint64(cellID), uint64(found.Start), uint64(found.End))
	}
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("s2store"),
		kong.Description("Satellite S2 cell id range store tooling"),
		kong.UsageOnError(),
	)

	if CLI.Verbose {
		logger.New("DEBUG")
	} else {
		logger.New("INFO")
	}
	defer logger.OnExit()

	log := logger.Sugar.WithServiceName("s2store")
	ctx.BindTo(log, (*logger.Logger)(nil))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
