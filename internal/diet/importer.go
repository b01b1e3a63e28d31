package diet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FetchTimeout bounds the download of a diet page.
const FetchTimeout = 15 * time.Second

const maxPageBytes = 2 << 20

// ErrEmpty is returned when an import yields no usable text.
var ErrEmpty = errors.New("diet is empty")

// Source describes where a diet came from.
type Source string

const (
	SourceText Source = "text"
	SourceHTML Source = "html"
	SourceURL  Source = "url"
)

// Diet is the cleaned text of an imported diet.
type Diet struct {
	Content string
	Source  Source
	URL     string
}

// Importer turns pasted text, pasted HTML or a link into diet text.
type Importer struct {
	client *http.Client
}

// NewImporter creates an Importer. A nil client gets one with FetchTimeout.
func NewImporter(client *http.Client) *Importer {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &Importer{client: client}
}

// Import detects the kind of input and returns the diet text.
func (i *Importer) Import(ctx context.Context, input string) (Diet, error) {
	input = strings.TrimSpace(input)
	var d Diet
	switch {
	case IsURL(input):
		text, err := i.fetchAndClean(ctx, input)
		if err != nil {
			return Diet{}, fmt.Errorf("failed to fetch diet: %w", err)
		}
		d = Diet{Content: text, Source: SourceURL, URL: input}
	case looksLikeHTML(input):
		text, err := CleanHTML(strings.NewReader(input))
		if err != nil {
			return Diet{}, err
		}
		d = Diet{Content: text, Source: SourceHTML}
	default:
		d = Diet{Content: input, Source: SourceText}
	}
	if d.Content == "" {
		return Diet{}, ErrEmpty
	}
	return d, nil
}

// IsURL reports whether s is a single http(s) link.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) &&
		!strings.ContainsAny(s, " \n\t")
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, tag := range []string{"<html", "<body", "<p>", "<p ", "<ul", "<table", "<div"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

func (i *Importer) fetchAndClean(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	return CleanHTML(io.LimitReader(resp.Body, maxPageBytes))
}

var blankRun = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)

// CleanHTML strips page chrome and returns the readable text, one block per line.
func CleanHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Remove noise
	doc.Find("script, style, noscript, nav, header, footer, iframe, form, ads, .ads, #ads").Remove()

	doc.Find("p, li, br, tr, div, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		if line = strings.TrimSpace(blankRun.ReplaceAllString(line, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
