package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/porticus-lab/tdnet-digest/pdf"
)

// runExtract implements the "extract" command.
func runExtract(args []string, stdout io.Writer) error {
	var (
		outputFile string
		pageRange  string
		format     string
		engine     = os.Getenv("TDSUM_ENGINE")
		raw        bool
		inputFile  string
	)

	for i := 0; i < len(args); i++ {
		var err error
		switch args[i] {
		case "-o":
			outputFile, err = nextArg(args, &i)
		case "-p":
			pageRange, err = nextArg(args, &i)
		case "-f":
			format, err = nextArg(args, &i)
		case "-engine":
			engine, err = nextArg(args, &i)
		case "-raw":
			raw = true
		default:
			if strings.HasPrefix(args[i], "-") {
				return fmt.Errorf("unknown option: %s", args[i])
			}
			inputFile = args[i]
		}
		if err != nil {
			return err
		}
	}

	if inputFile == "" {
		return fmt.Errorf("no input file specified")
	}
	switch format {
	case "":
		format = "text"
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	load, err := pdf.LoaderByName(engine)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return err
	}
	doc, err := load(data)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputFile, err)
	}

	pages, err := parsePageRange(pageRange, doc.NumPages())
	if err != nil {
		return fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	ext := pdf.NewExtractor(pdf.WithLoader(load), pdf.WithLogger(newLogger()))
	texts, err := ext.ExtractPages(context.Background(), doc, pages)
	if err != nil {
		return err
	}

	out := stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	type pageResult struct {
		Page int    `json:"page"`
		Text string `json:"text"`
	}

	switch format {
	case "json":
		results := make([]pageResult, len(pages))
		for i, p := range pages {
			results[i] = pageResult{Page: p, Text: texts[i]}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
	case "markdown":
		for i, p := range pages {
			fmt.Fprintf(out, "## Page %d\n\n%s\n\n", p, texts[i])
		}
	default:
		if raw {
			for i, text := range texts {
				if i > 0 {
					fmt.Fprintln(out, "\f") // form feed between pages
				}
				fmt.Fprintln(out, text)
			}
			return nil
		}
		fmt.Fprintln(out, pdf.Clean(strings.Join(texts, "\n\n")))
	}
	return nil
}

// runInfo implements the "info" command.
func runInfo(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no input file specified")
	}
	inputFile := args[0]

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return err
	}
	info, err := pdf.ReadInfo(data)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputFile, err)
	}

	fmt.Fprintf(stdout, "File:    %s\n", inputFile)
	fmt.Fprintf(stdout, "Version: PDF-%s\n", info.Version)
	fmt.Fprintf(stdout, "Pages:   %d\n", len(info.Pages))

	// pdfcpu validates the document structure strictly; a disagreement
	// usually points at a damaged page tree.
	if n, err := api.PageCountFile(inputFile); err != nil {
		fmt.Fprintf(stdout, "Check:   pdfcpu could not read the file: %v\n", err)
	} else if n != len(info.Pages) {
		fmt.Fprintf(stdout, "Check:   pdfcpu counts %d pages\n", n)
	}

	if len(info.Pages) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Page dimensions:")
		for i, p := range info.Pages {
			fmt.Fprintf(stdout, "  Page %d: %.0f x %.0f pt", i+1, p.Width, p.Height)
			if p.Rotation != 0 {
				fmt.Fprintf(stdout, " (rotated %d°)", p.Rotation)
			}
			fmt.Fprintln(stdout)
		}
	}
	return nil
}

// parsePageRange converts a page range string to 1-based page numbers.
// Supported formats: "" (all), "3" (single page), "1-5" (range), "1,3,5" (list).
func parsePageRange(spec string, total int) ([]int, error) {
	if spec == "" {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}

	var pages []int
	seen := make(map[int]bool)
	add := func(p int) {
		if !seen[p] {
			pages = append(pages, p)
			seen[p] = true
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if start, end, ok := strings.Cut(part, "-"); ok {
			from, err := strconv.Atoi(strings.TrimSpace(start))
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", start)
			}
			to, err := strconv.Atoi(strings.TrimSpace(end))
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", end)
			}
			if from < 1 || to > total || from > to {
				return nil, fmt.Errorf("page range %d-%d out of bounds (1-%d)", from, to, total)
			}
			for p := from; p <= to; p++ {
				add(p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		if p < 1 || p > total {
			return nil, fmt.Errorf("page %d out of bounds (1-%d)", p, total)
		}
		add(p)
	}
	return pages, nil
}
