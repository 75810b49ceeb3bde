package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// ParsedFeed is the canonical output of the parser: a Feed record with
// title, link, optional TTL, and an ordered sequence of posts merged from
// whichever container format (RSS <item> or Atom <entry>) the source uses.
type ParsedFeed struct {
	Title      string
	Link       string
	TTLMinutes int
	Posts      []domain.Post
}

// rssDocument mirrors the subset of RSS 2.0 this bot consumes.
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string `xml:"title"`
		Link  string `xml:"link"`
		TTL   int    `xml:"ttl"`
		Items []struct {
			Title       string   `xml:"title"`
			Link        string   `xml:"link"`
			PubDate     string   `xml:"pubDate"`
			GUID        string   `xml:"guid"`
			Description string   `xml:"description"`
			Author      string   `xml:"author"`
			Category    []string `xml:"category"`
		} `xml:"item"`
	} `xml:"channel"`
}

// atomDocument mirrors the subset of Atom 1.0 this bot consumes. Atom
// represents the canonical feed link and per-entry links as <link
// rel="..." href="..."/> elements rather than plain text, so href/rel are
// parsed explicitly and "alternate" (or no rel at all) is treated as the
// display link.
type atomDocument struct {
	XMLName xml.Name `xml:"feed"`
	Title   string   `xml:"title"`
	Links   []atomLink `xml:"link"`
	Entries []struct {
		Title     string     `xml:"title"`
		Links     []atomLink `xml:"link"`
		Published string     `xml:"published"`
		Updated   string     `xml:"updated"`
		ID        string     `xml:"id"`
		Summary   string     `xml:"summary"`
		Content   string     `xml:"content"`
		Author    struct {
			Name string `xml:"name"`
		} `xml:"author"`
		Category []struct {
			Term string `xml:"term,attr"`
		} `xml:"category"`
	} `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (l atomLink) isAlternate() bool {
	return l.Rel == "" || l.Rel == "alternate"
}

func atomDisplayLink(links []atomLink) string {
	for _, l := range links {
		if l.isAlternate() {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

// Parse decodes raw feed bytes. The root element picks the format: an RSS
// document yields its <item> elements as posts, an Atom document its
// <entry> elements. Only one container kind is read from a document;
// <entry> elements inside an RSS document are not collected, nor <item>
// elements inside an Atom one.
func Parse(body []byte) (*ParsedFeed, error) {
	root, err := rootElementName(body)
	if err != nil {
		return nil, err
	}

	switch root {
	case "rss":
		return parseRSS(body)
	case "feed":
		return parseAtom(body)
	default:
		return nil, fmt.Errorf("feed: unrecognized root element %q", root)
	}
}

func rootElementName(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("feed: scanning for root element: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(start.Name.Local), nil
		}
	}
}

func parseRSS(body []byte) (*ParsedFeed, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("feed: decoding rss: %w", err)
	}

	posts := make([]domain.Post, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		posts = append(posts, domain.Post{
			Title:       item.Title,
			Link:        item.Link,
			PubDate:     item.PubDate,
			GUID:        item.GUID,
			Description: item.Description,
			Author:      item.Author,
			Category:    item.Category,
		})
	}

	return &ParsedFeed{
		Title:      doc.Channel.Title,
		Link:       doc.Channel.Link,
		TTLMinutes: doc.Channel.TTL,
		Posts:      posts,
	}, nil
}

func parseAtom(body []byte) (*ParsedFeed, error) {
	var doc atomDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("feed: decoding atom: %w", err)
	}

	posts := make([]domain.Post, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		pubDate := entry.Published
		if pubDate == "" {
			pubDate = entry.Updated
		}
		desc := entry.Summary
		if desc == "" {
			desc = entry.Content
		}

		categories := make([]string, 0, len(entry.Category))
		for _, c := range entry.Category {
			categories = append(categories, c.Term)
		}

		posts = append(posts, domain.Post{
			Title:       entry.Title,
			Link:        atomDisplayLink(entry.Links),
			PubDate:     pubDate,
			GUID:        entry.ID,
			Description: desc,
			Author:      entry.Author.Name,
			Category:    categories,
		})
	}

	return &ParsedFeed{
		Title: doc.Title,
		Link:  atomDisplayLink(doc.Links),
		Posts: posts,
	}, nil
}
