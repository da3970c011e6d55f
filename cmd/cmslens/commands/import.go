package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/cmd/cmslens/internal/format"
	"github.com/cmslens/cmslens/pkg/capture"
)

// NewImportCommand loads capture records from a JSON or JSONL file into
// the capture store.
func NewImportCommand() *cobra.Command {
	var (
		outputMode string
		quiet      bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:     "import <file>",
		Short:   "Import detection captures into the store",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return err
			}
			f := format.New(os.Stdout, os.Stderr, format.ParseMode(outputMode), quiet, !noColor)

			dataPoints, skipped, err := readCaptures(args[0])
			if err != nil {
				return err
			}
			if len(dataPoints) == 0 {
				return fmt.Errorf("no usable captures in %s", args[0])
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			batchID, err := store.SaveBatch(cmd.Context(), dataPoints)
			if err != nil {
				return fmt.Errorf("save captures: %w", err)
			}

			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			log.Info().Str("batch_id", batchID).Int("imported", len(dataPoints)).Int("skipped", skipped).Msg("import complete")

			if format.ParseMode(outputMode) == format.ModeJSON {
				return f.PrintJSON(map[string]any{
					"success":  true,
					"batchId":  batchID,
					"imported": len(dataPoints),
					"skipped":  skipped,
					"total":    total,
				})
			}
			if skipped > 0 {
				if err := f.PrintWarning(fmt.Sprintf("Skipped %d records without a URL", skipped)); err != nil {
					return err
				}
			}
			return f.PrintSummary(fmt.Sprintf("✓ Imported %d captures (batch %s, %d sites indexed)", len(dataPoints), batchID, total))
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "Output format: table or json")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress summary output")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

// readCaptures decodes a capture file. A leading '[' selects JSON-array
// decoding; anything else is treated as JSONL, one object per line.
// Records without a URL are counted and dropped.
func readCaptures(path string) ([]capture.DetectionDataPoint, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open capture file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	first, err := firstByte(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("read capture file: %w", err)
	}

	var raw []any
	if first == '[' {
		if err := json.NewDecoder(reader).Decode(&raw); err != nil {
			return nil, 0, fmt.Errorf("decode capture array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Bytes()
			if len(text) == 0 {
				continue
			}
			var record map[string]any
			if err := json.Unmarshal(text, &record); err != nil {
				return nil, 0, fmt.Errorf("decode capture at line %d: %w", line, err)
			}
			raw = append(raw, record)
		}
		if err := scanner.Err(); err != nil {
			return nil, 0, fmt.Errorf("read capture file: %w", err)
		}
	}

	decoded := capture.SliceFromMaps(raw)
	kept := decoded[:0]
	skipped := 0
	for _, dp := range decoded {
		if dp.URL == "" {
			skipped++
			continue
		}
		kept = append(kept, dp)
	}
	return kept, skipped, nil
}

// firstByte peeks past leading whitespace without consuming input.
func firstByte(r *bufio.Reader) (byte, error) {
	for i := 1; ; i++ {
		peeked, err := r.Peek(i)
		if err == io.EOF && len(peeked) < i {
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}
		switch peeked[i-1] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return peeked[i-1], nil
		}
	}
}
