// Command tollcalc prices a CSV of passages offline and prints one charge per row.
//
//	tollcalc -in passages.csv -format table
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"tollfee/internal/buildinfo"
	"tollfee/internal/integrations/csvfile"
	"tollfee/internal/model"
	"tollfee/internal/toll"
)

func main() {
	in := flag.String("in", "-", "CSV file with vehicleId,vehicleType,timestamp columns (- for stdin)")
	format := flag.String("format", "json", "output format: json or table")
	holidays := flag.String("holidays", "", "holiday YAML file (default: embedded table)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		return
	}
	if err := run(*in, *format, *holidays, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tollcalc:", err)
		os.Exit(1)
	}
}

func run(inPath, format, holidaysPath string, stdin io.Reader, out io.Writer) error {
	if format != "json" && format != "table" {
		return fmt.Errorf("unknown format %q", format)
	}
	hol := toll.DefaultHolidays()
	if holidaysPath != "" {
		h, err := toll.LoadHolidays(holidaysPath)
		if err != nil {
			return err
		}
		hol = h
	}
	cal, err := toll.NewCalendar(hol)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var ins []model.PassageInput
	if inPath == "-" {
		ins, err = csvfile.Parse(ctx, stdin)
	} else {
		ins, err = csvfile.Adapter{Path: inPath}.Fetch(ctx)
	}
	if err != nil {
		return err
	}

	// Row order gives the ids so output lines up with the input file.
	passages := make([]model.Passage, len(ins))
	for i, p := range ins {
		passages[i] = model.Passage{ID: strconv.Itoa(i + 1), VehicleID: p.VehicleID, VehicleType: p.VehicleType, Timestamp: p.Timestamp}
	}
	charges, err := toll.NewEngine(cal).Calculate(passages)
	if err != nil {
		return err
	}
	views := make([]model.PassageView, len(passages))
	for i, p := range passages {
		views[i] = model.NewPassageView(p, charges[p.ID])
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"data": views})
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVEHICLE\tTYPE\tTIMESTAMP\tBASE\tCHARGED\tDAY TOTAL")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n", v.ID, v.VehicleID, v.VehicleType, v.Timestamp, v.BaseFee, v.ChargedFee, v.DailyTotal)
	}
	return tw.Flush()
}
