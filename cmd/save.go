package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/portaria/internal/ingest"
	"example.com/portaria/internal/models"
)

var saveWindow string

var saveCmd = &cobra.Command{
	Use:   "save [text]",
	Short: "Ingest operator lines",
	Long: `Ingest one operator line given as arguments, or one line per row read
from stdin when no argument is given.`,
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().StringVar(&saveWindow, "window", "", "window the line was typed in (acesso, encomendas)")
}

func runSave(cmd *cobra.Command, args []string) error {
	base := models.Destination(saveWindow)
	if base != "" && !base.Valid() {
		return errors.Errorf("unknown window %q", saveWindow)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return saveLine(ctx, out, strings.Join(args, " "), base)
	}

	var pending, spooled, failed int
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		err := saveLine(ctx, out, line, base)
		switch {
		case err == nil:
		case errors.Is(err, ingest.ErrSpooled):
			spooled++
		case errors.Is(err, ingest.ErrLockNotAcquired):
			pending++
		default:
			log.Error().Err(err).Str("text", line).Msg("Failed to save line")
			failed++
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read stdin")
	}
	if pending+spooled+failed > 0 {
		return errors.Errorf("%d line(s) left pending, %d spooled, %d failed", pending, spooled, failed)
	}
	return nil
}

func saveLine(ctx context.Context, out io.Writer, text string, base models.Destination) error {
	res, err := app.ingest.SaveTextAs(ctx, text, base)
	if errors.Is(err, ingest.ErrSpooled) {
		fmt.Fprintln(out, "spooled\tinit-store busy, run reprocess")
		log.Warn().Err(err).Str("text", text).Msg("Line spooled")
		return err
	}
	if errors.Is(err, ingest.ErrLockNotAcquired) {
		log.Warn().Err(err).Str("text", text).Msg("Line left pending")
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t#%d", res.Destination, res.Entry.ID)
	if id := res.Identity(); id != "" {
		fmt.Fprintf(out, "\t%s", id)
	}
	fmt.Fprintln(out)
	return nil
}
