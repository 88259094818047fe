//go:build ignore

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/capture"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
)

// Statistics tracks decode results across files
type Statistics struct {
	Files     int
	Records   int
	Decoded   int
	Failed    []Failure
	Commands  map[string]int
	SysExForm map[string]int
}

// Failure is one record whose raw bytes did not decode.
type Failure struct {
	File  string
	Seq   int
	Link  string
	Raw   string
	Error string
}

func main() {
	verbose := flag.Bool("v", false, "print every record with a hex dump")
	flag.Usage = func() {
		fmt.Println("Usage: decode-capture [-v] <capture.jsonl | directory>")
		fmt.Println("Example: go run tools/decode-capture.go -v captures/")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	files, err := captureFiles(flag.Arg(0))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	stats := &Statistics{Commands: map[string]int{}, SysExForm: map[string]int{}}
	for _, path := range files {
		decodeFile(path, stats, *verbose)
	}
	printSummary(stats)

	if len(stats.Failed) > 0 {
		os.Exit(2)
	}
}

func captureFiles(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}
	files, err := filepath.Glob(filepath.Join(arg, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func decodeFile(path string, stats *Statistics, verbose bool) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("Error opening %s: %v\n", path, err)
		return
	}
	defer f.Close()

	records, errs := capture.Read(f)
	for _, err := range errs {
		fmt.Printf("%s: %v\n", path, err)
	}
	stats.Files++

	for _, rec := range records {
		stats.Records++
		raw, err := rec.Raw()
		if err != nil {
			stats.fail(path, rec, fmt.Sprintf("bad raw hex: %v", err))
			continue
		}

		summary, err := decode(rec.Codec, raw, stats)
		if err != nil {
			stats.fail(path, rec, err.Error())
			continue
		}
		stats.Decoded++

		if verbose {
			fmt.Printf("#%-5d %s %-4s %-3s %s\n", rec.Seq, rec.Timestamp.Format("15:04:05.000"), rec.Link, rec.Direction, summary)
			hexDump(raw)
		}
	}
}

func decode(codec capture.Codec, raw []byte, stats *Statistics) (string, error) {
	if codec == capture.CodecSysEx {
		m, err := sysex.Decode(raw)
		if err != nil {
			return "", err
		}
		m = m.Canonical()
		stats.Commands["sysex "+m.Command.String()]++
		stats.SysExForm[m.Form.String()]++
		return fmt.Sprintf("%s payload=% X", m, m.Payload), nil
	}

	f, err := wire.ParseFrame(raw)
	if err != nil {
		return "", err
	}
	stats.Commands["wire "+f.Command.String()]++
	return fmt.Sprintf("%s payload=% X", f, f.Payload), nil
}

func (s *Statistics) fail(path string, rec capture.Record, msg string) {
	s.Failed = append(s.Failed, Failure{File: path, Seq: rec.Seq, Link: rec.Link, Raw: rec.RawHex, Error: msg})
}

func printSummary(s *Statistics) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Files: %d  Records: %d  Decoded: %d  Failed: %d\n", s.Files, s.Records, s.Decoded, len(s.Failed))
	fmt.Println(strings.Repeat("=", 60))

	names := make([]string, 0, len(s.Commands))
	for name := range s.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nCommands:")
	for _, name := range names {
		fmt.Printf("  %-32s %6d\n", name, s.Commands[name])
	}

	if len(s.SysExForm) > 0 {
		fmt.Println("\nSysEx forms:")
		for form, n := range s.SysExForm {
			fmt.Printf("  %-10s %6d\n", form, n)
		}
	}

	if len(s.Failed) > 0 {
		fmt.Println("\nFailures:")
		for _, f := range s.Failed {
			fmt.Printf("  %s #%d (%s): %s\n    raw: %s\n", filepath.Base(f.File), f.Seq, f.Link, f.Error, f.Raw)
		}
	}
}

func hexDump(payload []byte) {
	for i := 0; i < len(payload); i += 16 {
		fmt.Printf("    %04x  ", i)
		for j := 0; j < 16; j++ {
			if i+j < len(payload) {
				fmt.Printf("%02x ", payload[i+j])
			} else {
				fmt.Print("   ")
			}
			if j == 7 {
				fmt.Print(" ")
			}
		}
		fmt.Print(" |")
		for j := 0; j < 16 && i+j < len(payload); j++ {
			b := payload[i+j]
			if b >= 32 && b <= 126 {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println("|")
	}
}
