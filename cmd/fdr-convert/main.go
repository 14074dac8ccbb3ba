// Command fdr-convert is the thin extractor CLI: it reads one log.bin
// container and writes a GUTMA JSON exchange document (§6.4).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/skywing/fdrlog/internal/gutma"
	"github.com/skywing/fdrlog/internal/reader"
)

// Exit codes per §6.4.
const (
	exitOK                 = 0
	exitNoFlight           = 10
	exitUnsupportedVersion = 20
	exitError              = 1
)

// minFirmwareVersion is the oldest drone firmware this converter will
// process; development builds (firmware_version == "dev") bypass it.
const minFirmwareVersion = "1.6.0"

func main() {
	var (
		onlyFlight bool
		outPath    string
	)
	flag.BoolVar(&onlyFlight, "only-flight", false, "restrict output to the takeoff/landing window")
	flag.StringVar(&outPath, "out", "", "output JSON path (default: stdout)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fdr-convert [-only-flight] [-out path] <log.bin>")
		os.Exit(exitError)
	}

	os.Exit(run(flag.Arg(0), outPath, onlyFlight))
}

func run(inPath, outPath string, onlyFlight bool) int {
	sess, err := reader.ReadSession(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fdr-convert: %v\n", err)
		return exitError
	}

	fw := sess.Header["firmware_version"]
	if fw != "" && fw != "dev" && !firmwareSupported(fw) {
		fmt.Fprintf(os.Stderr, "fdr-convert: firmware version %q is below the minimum supported %q\n", fw, minFirmwareVersion)
		return exitUnsupportedVersion
	}

	if onlyFlight && sess.Header["takeoff"] == "0" {
		return exitNoFlight
	}

	doc := gutma.Convert(sess, onlyFlight)
	if onlyFlight && len(doc.Items) == 0 {
		return exitNoFlight
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "fdr-convert: encoding document: %v\n", err)
		return exitError
	}

	if outPath == "" {
		os.Stdout.Write(data)
		os.Stdout.Write([]byte("\n"))
		return exitOK
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "fdr-convert: writing %s: %v\n", outPath, err)
		return exitError
	}
	return exitOK
}

// firmwareSupported does a semantic major.minor.patch compare against
// minFirmwareVersion. A malformed version string is treated as
// supported — rejecting on a parse failure would make a cosmetic
// version-string change in the drone's firmware an outage.
func firmwareSupported(v string) bool {
	got, okGot := parseSemver(v)
	want, okWant := parseSemver(minFirmwareVersion)
	if !okGot || !okWant {
		return true
	}
	for i := 0; i < 3; i++ {
		if got[i] != want[i] {
			return got[i] > want[i]
		}
	}
	return true
}

func parseSemver(v string) ([3]int, bool) {
	var out [3]int
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
