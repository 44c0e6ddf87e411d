// Command-line entry point for offline offshore leg merging.
//
// Input is JSONL, one flight history row per line, in the shape the history
// table is scraped into:
//
//	{"date":"23-Jul-2025","aircraftId":"PR-OHR","origin":"Macaé (SBME)",
//	 "destination":"near Platform X","departure":"09:00AM -03",
//	 "arrival":"Last seen 09:30AM -03 (?)","duration":"0:30"}
//
// Rows are grouped by aircraftId (or -aircraft when the rows carry none),
// normalised and merged exactly as an aircraft lookup does, and written as a
// JSON array.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"flightinfo/internal/config"
	"flightinfo/internal/flight"
	"flightinfo/internal/lookup"
)

type Stats struct {
	Lines     int
	Malformed int
	Legs      int
	Aircraft  int
	Flights   int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "flightlegs - commands:")
	fmt.Fprintln(w, "  merge  - merge offshore flight legs from a JSONL file and output JSON")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  flightlegs merge -input legs.jsonl [-output out.json] [-pretty] [-aircraft ID] [-emit-trailing] [-config file.yml] [-stats]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Input must be JSONL (one history row per line).")
	fmt.Fprintln(w, "  - Locales, offshore keywords and the fragment threshold come from -config when given.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "merge":
		runMerge(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runMerge(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	aircraft := fs.String("aircraft", "", "Aircraft identifier for rows without one")
	emitTrailing := fs.Bool("emit-trailing", false, "Emit a merge still open at the end as En Route")
	configPath := fs.String("config", "", "YAML configuration file")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *emitTrailing {
		cfg.Lookup.EmitTrailingEnRoute = true
	}
	merger, err := cfg.Lookup.Merger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building merger: %v\n", err)
		os.Exit(1)
	}
	svc := lookup.New(nil, lookup.WithMerger(merger), lookup.WithDateParser(merger.Dates))

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	st := &Stats{}
	out, err := mergeLegs(r, svc, *aircraft, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: lines=%d malformed=%d legs=%d aircraft=%d flights=%d\n",
			st.Lines, st.Malformed, st.Legs, st.Aircraft, st.Flights,
		)
	}
}

// mergeLegs reads JSONL rows from r, groups them by aircraft in order of first
// appearance and merges each group.
func mergeLegs(r io.Reader, svc *lookup.Service, defaultAircraft string, st *Stats) ([]flight.Record, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	var order []string
	groups := make(map[string][]flight.RawLegRow)

	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var row flight.RawLegRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			st.Malformed++
			continue
		}
		st.Legs++

		ident := lookup.NormaliseAircraft(row.AircraftID)
		if ident == "" {
			ident = lookup.NormaliseAircraft(defaultAircraft)
		}
		if _, ok := groups[ident]; !ok {
			order = append(order, ident)
		}
		groups[ident] = append(groups[ident], row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make([]flight.Record, 0, st.Legs)
	for _, ident := range order {
		out = append(out, svc.HistoryRecords(ident, groups[ident])...)
	}
	st.Aircraft = len(order)
	st.Flights = len(out)
	return out, nil
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
