package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"CANParse/base"
	"CANParse/pgn"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

type decodedSignal struct {
	Name  string  `json:"name"`
	SPN   uint64  `json:"spn,omitempty"`
	Value float32 `json:"value"`
	Units string  `json:"units,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "decode <id> <payload>",
		Short: "Decode one CAN payload",
		Long: "Decode every signal of one message. The id is a CAN id (decimal or 0x hex), or a PGN with --pgn. " +
			"The payload is hex, spaces allowed: \"11 22 33 44 55 66 77 88\".",
		Example: "  canparse decode --dbc j1939.dbc 0x8CF00400 \"11 22 33 44 55 66 77 88\"\n" +
			"  canparse decode --dbc j1939.dbc --pgn 0xF004 1122334455667788",
		Args: cobra.ExactArgs(2),
		Run:  runDecode,
	}
	cmd.Flags().String("dbc", "", "DBC file (default: DBC section of the config)")
	cmd.Flags().String("excel", "", "xlsx DBC sheet merged after --dbc")
	cmd.Flags().Bool("pgn", false, "Treat the id as a PGN and use the first matching message")
	cmd.Flags().StringP("format", "f", "text", "Output format: json or text")
	RootCmd.AddCommand(cmd)
}

func runDecode(cmd *cobra.Command, args []string) {
	dbcPath, _ := cmd.Flags().GetString("dbc")
	excelPath, _ := cmd.Flags().GetString("excel")
	byPGN, _ := cmd.Flags().GetBool("pgn")
	format, _ := cmd.Flags().GetString("format")

	src := base.DBC{DBCPath: dbcPath, DBCExcel: excelPath}
	if dbcPath == "" && excelPath == "" {
		cfg, err := base.LoadConfig(configPath)
		if err != nil {
			exitErr("load config", err)
		}
		src = cfg.DBC
	}

	lib, err := loadLibrary(&src)
	if err != nil {
		exitErr("load dbc", err)
	}

	id, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		exitErr("parse id", err)
	}
	payload, err := parsePayload(args[1])
	if err != nil {
		exitErr("parse payload", err)
	}

	msg, err := findMessage(lib, uint32(id), byPGN)
	if err != nil {
		exitErr("lookup", err)
	}
	if err := writeDecoded(cmd.OutOrStdout(), msg, payload, format); err != nil {
		exitErr("decode", err)
	}
}

func findMessage(lib *pgn.Library, id uint32, byPGN bool) (*pgn.Message, error) {
	if byPGN {
		if msg, ok := lib.PGN(id); ok {
			return msg, nil
		}
		return nil, errors.Newf("no message with PGN %#x", id)
	}
	if msg, ok := lib.Message(id); ok {
		return msg, nil
	}
	return nil, errors.Newf("no message with id %d", id)
}

func parsePayload(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "payload %q", s)
	}
	return data, nil
}

func decodeMessage(msg *pgn.Message, payload []byte) []decodedSignal {
	var out []decodedSignal
	for _, name := range msg.SignalNames() {
		s := msg.Signals[name]
		v, ok := s.ParseMessage(payload)
		if !ok {
			log.Warnf("Decode (%s) failed ! startBit(%d) bitLen(%d)", name, s.StartBit, s.BitLen)
			continue
		}
		out = append(out, decodedSignal{name, s.Number, v, s.Units})
	}
	return out
}

func writeDecoded(w io.Writer, msg *pgn.Message, payload []byte, format string) error {
	signals := decodeMessage(msg, payload)

	if format == "json" {
		return jsoniter.NewEncoder(w).Encode(map[string]any{
			"id":      msg.ID,
			"name":    msg.Name,
			"pgn":     msg.PGN(),
			"sa":      msg.SA(),
			"signals": signals,
		})
	}

	fmt.Fprintf(w, "%s id=%d pgn=%#x sa=%d\n", msg.Name, msg.ID, msg.PGN(), msg.SA())
	for _, s := range signals {
		line := fmt.Sprintf("  %s = %g %s", s.Name, s.Value, s.Units)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	return nil
}
