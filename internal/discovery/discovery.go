// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

// Package discovery looks up a show on IMDb and counts its seasons and episodes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrShowNotFound = errors.New("show not found")
	ErrNoSeasons    = errors.New("show has no seasons")
)

const (
	searchResultSelector = ".ipc-metadata-list>li>div.ipc-metadata-list-summary-item__c>div a"
	seasonTabSelector    = "div.ipc-tabs.ipc-tabs--base.ipc-tabs--align-left.ipc-tabs--display-chip.ipc-tabs--inherit > ul.ipc-tabs.ipc-tabs--base.ipc-tabs--align-left a"
	episodeSelector      = ".episode-item-wrapper"
)

// Show is a search hit
type Show struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Season of a show
type Season struct {
	Number   int `json:"number"`
	Episodes int `json:"episodes"`
}

// Episode identifies one episode of a show
type Episode struct {
	Show    string `json:"show"`
	IMDbID  string `json:"imdb_id"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// Code formats S01E02
func (e Episode) Code() string {
	return fmt.Sprintf("S%02dE%02d", e.Season, e.Episode)
}

// Catalog finds shows and their seasons
type Catalog interface {
	Search(ctx context.Context, show string) (Show, error)
	Seasons(ctx context.Context, id string) ([]Season, error)
}

// Config for Client
type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Client scrapes IMDb pages
type Client struct {
	base      string
	userAgent string
	client    *http.Client
}

var _ Catalog = (*Client)(nil)

// New creates a client
func New(config Config) *Client {
	c := &Client{
		base:      strings.TrimSuffix(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		client:    config.Client,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Search returns the first TV result for show
func (c *Client) Search(ctx context.Context, show string) (Show, error) {
	show = strings.TrimSpace(show)
	if show == "" {
		return Show{}, ErrShowNotFound
	}

	q := url.Values{}
	q.Set("q", show)
	q.Set("s", "tt")
	q.Set("ttype", "tv")
	q.Set("ref_", "fn_tv")

	doc, err := c.fetch(ctx, c.base+"/find/?"+q.Encode())
	if err != nil {
		return Show{}, err
	}

	link := doc.Find(searchResultSelector).First()
	href, ok := link.Attr("href")
	if !ok {
		return Show{}, fmt.Errorf("%w: %s", ErrShowNotFound, show)
	}

	// /title/tt0944947/?ref_=fn_tv_tt_1
	parts := strings.Split(href, "/")
	if len(parts) < 3 || !strings.HasPrefix(parts[2], "tt") {
		return Show{}, fmt.Errorf("%w: unexpected link %q", ErrShowNotFound, href)
	}

	title := strings.TrimSpace(link.Text())
	if title == "" {
		title = show
	}

	return Show{ID: parts[2], Title: title}, nil
}

// Seasons counts the episodes of every season of the show with the given id
func (c *Client) Seasons(ctx context.Context, id string) ([]Season, error) {
	doc, err := c.fetch(ctx, c.episodesURL(id, 0))
	if err != nil {
		return nil, err
	}

	count := doc.Find(seasonTabSelector).Length()
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSeasons, id)
	}

	seasons := make([]Season, 0, count)
	for n := 1; n <= count; n++ {
		page, err := c.fetch(ctx, c.episodesURL(id, n))
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", n, err)
		}
		seasons = append(seasons, Season{
			Number:   n,
			Episodes: page.Find(episodeSelector).Length(),
		})
	}

	return seasons, nil
}

// Episodes expands seasons into the list of episodes to download
func Episodes(show Show, name string, seasons []Season) []Episode {
	var episodes []Episode
	for _, s := range seasons {
		for e := 1; e <= s.Episodes; e++ {
			episodes = append(episodes, Episode{Show: name, IMDbID: show.ID, Season: s.Number, Episode: e})
		}
	}
	return episodes
}

func (c *Client) episodesURL(id string, season int) string {
	u := c.base + "/title/" + url.PathEscape(id) + "/episodes"
	if season > 0 {
		u += "?season=" + strconv.Itoa(season)
	}
	return u
}

func (c *Client) fetch(ctx context.Context, address string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", address, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", address, err)
	}
	return doc, nil
}
