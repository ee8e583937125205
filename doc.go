// Package digest summarizes TDnet timely-disclosure documents.
//
// A [Pipeline] takes a disclosure row's PDF link, downloads the document,
// hands the bytes to a separate worker for text extraction, and sends the
// cleaned text to an OpenAI-compatible chat completion endpoint:
//
//	store := settings.NewFileStore("settings.yaml")
//	r := relay.New(relay.InProcess{Extractor: pdf.NewExtractor()})
//	defer r.Close()
//
//	p := digest.NewPipeline(store, r)
//	summary, err := p.Summarize(ctx, digest.SummarizeRequest{
//	    PDFURL: "https://www.release.tdnet.info/inbs/140120240101000000.pdf",
//	})
//
// Every failure is reported once, as one of [ConfigurationError],
// [FetchError], [ExtractionError] or [SummarizationError]. A settings
// store that cannot be read is a [ConfigurationError] too. Nothing is
// retried, and a closed Pipeline returns [ErrClosed].
//
// [Pipeline.Handle] maps a request to the {summary | error} reply used by
// the message endpoint.
package digest
