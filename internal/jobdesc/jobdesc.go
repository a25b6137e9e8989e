// Package jobdesc fetches job postings and reduces them to text that fits
// into an LLM prompt.
package jobdesc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// MaxPromptChars is how much of a job description goes into a prompt.
	MaxPromptChars = 2000

	maxBodyBytes = 2 << 20
	fetchTimeout = 20 * time.Second
	userAgent    = "Mozilla/5.0 (compatible; apptrack/1.0)"
)

// ErrInvalidURL is returned for links that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("job link must be an http(s) URL")

var (
	removeSelectors = strings.Join([]string{
		"script", "style", "noscript", "iframe", "svg", "form",
		"header", "footer", "nav", "aside",
		".cookie", ".banner", ".ads", ".advertisement", ".social", ".popup",
		"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	}, ", ")
	contentSelectors = strings.Join([]string{
		".job-description", "#job-description", ".description__text",
		"[itemprop=description]", "article", "main", "#content", ".content",
	}, ", ")

	spaceRe     = regexp.MustCompile(`[ \t]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
)

// Description is a fetched job posting.
type Description struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher downloads job postings.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets one with a 20s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Fetcher{client: client}
}

// Fetch downloads rawURL and returns its main text as markdown.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Description, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Description{}, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Description{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Description{}, fmt.Errorf("fetching job posting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Description{}, fmt.Errorf("fetching job posting: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Description{}, fmt.Errorf("reading job posting: %w", err)
	}

	d := Description{URL: u.String()}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/plain" {
		d.Text = tidy(string(body))
	} else {
		d.Title, d.Text = Clean(string(body))
	}
	if d.Text == "" {
		return d, fmt.Errorf("job posting at %s has no readable text", u.Host)
	}
	return d, nil
}

// Clean reduces an HTML page to its title and main content as markdown.
// Pages goquery cannot handle fall back to a plain token walk.
func Clean(page string) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", plainText(page)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").First().Attr("content")
		title = strings.TrimSpace(title)
	}

	doc.Find(removeSelectors).Remove()

	sel := doc.Find(contentSelectors).First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	fragment, err := goquery.OuterHtml(sel)
	if err == nil {
		if md, err := htmltomarkdown.ConvertString(fragment); err == nil {
			if md = tidy(md); md != "" {
				return title, md
			}
		}
	}
	return title, tidy(sel.Text())
}

// plainText concatenates the text tokens of page, skipping script and style
// bodies.
func plainText(page string) string {
	z := html.NewTokenizer(strings.NewReader(page))
	var (
		b    strings.Builder
		skip bool
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidy(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			skip = string(name) == "script" || string(name) == "style"
		case html.EndTagToken:
			skip = false
			b.WriteByte('\n')
		case html.TextToken:
			if !skip {
				b.Write(z.Text())
			}
		}
	}
}

// tidy collapses runs of spaces and blank lines.
func tidy(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLineRe.ReplaceAllString(s, "\n\n"))
}

// ForPrompt trims text and caps it at MaxPromptChars runes.
func ForPrompt(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= MaxPromptChars {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:MaxPromptChars]))
}
