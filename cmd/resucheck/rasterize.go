package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"resucheck/internal/export/raster"
)

var rasterizeCmd = &cobra.Command{
	Use:   "rasterize <file.pdf>",
	Short: "Render the first page of a PDF to PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runRasterize,
}

var (
	rasterizeOut      string
	rasterizePdftoppm string
)

func init() {
	rasterizeCmd.Flags().StringVarP(&rasterizeOut, "out", "o", "", "Output PNG path (default: input name with .png)")
	rasterizeCmd.Flags().StringVar(&rasterizePdftoppm, "pdftoppm", os.Getenv("PDFTOPPM_PATH"), "Path to the pdftoppm binary")

	rootCmd.AddCommand(rasterizeCmd)
}

func runRasterize(cmd *cobra.Command, args []string) error {
	in := args[0]
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("open %s: %w", in, err)
	}
	defer f.Close()

	r := raster.New(raster.LoadPdftoppm(rasterizePdftoppm), nil)
	res := r.Convert(context.Background(), filepath.Base(in), f)
	if !res.OK() {
		return fmt.Errorf("rasterize %s: %s", in, res.Error)
	}

	out := rasterizeOut
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".png"
	}
	if err := os.WriteFile(out, res.File.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%dx%d)\n", out, res.File.Width, res.File.Height)
	return nil
}
