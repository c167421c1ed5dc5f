package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/ivalue"
)

func newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <archive>",
		Short: "List the records stored in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := archive.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()
			return writeRecords(cmd.OutOrStdout(), reader)
		},
	}
}

func writeRecords(w io.Writer, reader *archive.Zip) error {
	if _, err := fmt.Fprintf(w, "archive: %s (version %d)\n", reader.Name(), reader.Version()); err != nil {
		return err
	}
	for _, name := range reader.RecordNames() {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

// formatValue renders a decoded value on one line.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case *ivalue.Tensor:
		return v.String()
	case *ivalue.Object:
		return fmt.Sprintf("<%s>", v.Class().Name)
	case *ivalue.List:
		return fmt.Sprintf("List(len=%d)", v.Len())
	case *ivalue.Tuple:
		return fmt.Sprintf("Tuple(len=%d)", v.Len())
	case *ivalue.Dict:
		return fmt.Sprintf("Dict(len=%d)", v.Len())
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}
