package main

import (
	"fmt"
	"io"
	"os"

	"CANParse/dbc"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type recordLine struct {
	Line   int        `json:"line"`
	Kind   string     `json:"kind"`
	Record dbc.Record `json:"record"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "records <file.dbc>",
		Short: "Print the records of a DBC file as JSON lines",
		Long:  "Parse an ISO-8859-1 DBC file line by line and print one JSON object per record, unknown lines included.",
		Args:  cobra.ExactArgs(1),
		Run:   runRecords,
	}
	cmd.Flags().StringSliceP("kind", "k", nil, "Only print these record kinds, e.g. MessageDefinition")
	RootCmd.AddCommand(cmd)
}

func runRecords(cmd *cobra.Command, args []string) {
	kinds, _ := cmd.Flags().GetStringSlice("kind")

	text, err := readLatin1(args[0])
	if err != nil {
		exitErr("read", err)
	}
	if err := writeRecords(cmd.OutOrStdout(), text, kinds); err != nil {
		exitErr("records", err)
	}
}

func writeRecords(w io.Writer, text string, kinds []string) error {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	enc := jsoniter.NewEncoder(w)
	p := dbc.NewParser(text)
	for p.Next() {
		kind := p.Record().Kind().String()
		if len(want) > 0 && !want[kind] {
			continue
		}
		if err := enc.Encode(recordLine{p.Line(), kind, p.Record()}); err != nil {
			return errors.Wrap(err, "encode record")
		}
	}

	if err := p.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, %d bytes not parsed\n", err, len(p.Remainder()))
	}
	return nil
}

func readLatin1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	data, err := io.ReadAll(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}
