// tdsum summarizes TDnet timely disclosures.
//
// Usage:
//
//	tdsum serve
//	tdsum summarize [options] <pdfUrl|file.pdf>
//	tdsum rows [options]
//	tdsum extract [options] <file.pdf>
//	tdsum info <file.pdf>
//	tdsum worker
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "summarize":
		err = runSummarize(os.Args[2:], os.Stdout)
	case "rows":
		err = runRows(os.Args[2:], os.Stdout)
	case "extract":
		err = runExtract(os.Args[2:], os.Stdout)
	case "info":
		err = runInfo(os.Args[2:], os.Stdout)
	case "worker":
		err = runWorker()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`tdsum - TDnet disclosure summarizer

Usage:
  tdsum serve
  tdsum summarize [options] <pdfUrl|file.pdf>
  tdsum rows [options]
  tdsum extract [options] <file.pdf>
  tdsum info <file.pdf>
  tdsum worker

Commands:
  serve      Serve the annotated listing, message and settings endpoints
  summarize  Fetch, extract and summarize one disclosure PDF
  rows       Print the disclosure rows of the current listing as JSON
  extract    Extract text from a local PDF file
  info       Display document metadata and page dimensions
  worker     Run the extraction worker on stdin/stdout (used by the relay)

Summarize options:
  -save <file>    Also write the downloaded PDF to file
  -text           Print the extracted text instead of summarizing

Rows options:
  -url <url>      Listing page (default: TDSUM_LISTING_URL)

Extract options:
  -o <file>       Write output to file (default: stdout)
  -p <range>      Page range, e.g. "1", "1-5", "1,3,5" (default: all)
  -f <format>     Output format: text, json, markdown (default: text)
  -engine <name>  PDF engine: native, poppler (default: TDSUM_ENGINE)
  -raw            Do not clean text output

Configuration is read from the environment and ./.env; see TDSUM_*.

Examples:
  tdsum serve
  tdsum summarize 140120240101000001.pdf
  tdsum extract -p 1-3 -f json disclosure.pdf > out.json
  tdsum info disclosure.pdf
`)
}

// nextArg returns the value following the option at args[*i].
func nextArg(args []string, i *int) (string, error) {
	opt := args[*i]
	*i++
	if *i >= len(args) {
		return "", fmt.Errorf("%s requires an argument", opt)
	}
	return args[*i], nil
}
