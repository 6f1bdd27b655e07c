package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/tideline/tideline/internal/compose"
	"github.com/tideline/tideline/internal/entities"
	"github.com/tideline/tideline/internal/feed"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/relays"
)

type threadItem struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	Pubkey      string   `json:"pubkey"`
	Npub        string   `json:"npub"`
	AuthorName  string   `json:"authorName"`
	Kind        int      `json:"kind"`
	Title       string   `json:"title"`
	URL         string   `json:"url,omitempty"`
	Content     string   `json:"content"`
	ContentHTML string   `json:"contentHtml"`
	CreatedAt   int64    `json:"createdAt"`
	Hashtags    []string `json:"hashtags,omitempty"`
	ZapSats     int64    `json:"zapSats"`
	Comments    int      `json:"comments"`
	Zappable    bool     `json:"zappable"`
}

type feedResponse struct {
	Items      []threadItem `json:"items"`
	NextCursor int64        `json:"nextCursor,omitempty"`
	HasMore    bool         `json:"hasMore"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	pag := feed.NewFrontPage(s.client, s.cfg.Feed.PageSize, s.relays.Generation)
	s.servePage(w, r, pag)
}

func (s *Server) handleTagFeed(w http.ResponseWriter, r *http.Request) {
	tag := strings.ToLower(chi.URLParam(r, "tag"))
	if tag == "" {
		writeBadRequest(w, "tag is required")
		return
	}
	pag := feed.NewTagFeed(s.client, tag, s.cfg.Feed.PageSize, s.relays.Generation)
	s.servePage(w, r, pag)
}

func (s *Server) handleAuthorFeed(w http.ResponseWriter, r *http.Request) {
	ref, err := entities.ParseRef(chi.URLParam(r, "code"))
	if err != nil || ref.Type != "profile" {
		writeNotFound(w)
		return
	}
	pag := feed.NewAuthorFeed(s.client, ref.ID, s.cfg.Feed.PageSize, s.relays.Generation)
	s.servePage(w, r, pag)
}

// servePage runs one page through the whole pipeline: fetch, dedupe,
// eligibility filter, aggregation, ranking
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, pag *feed.Paginator) {
	ctx := r.Context()

	mode, ok := feed.ParseSortMode(r.URL.Query().Get("sort"))
	if !ok {
		mode, _ = feed.ParseSortMode(s.cfg.Feed.DefaultSort)
	}
	if until, err := strconv.ParseInt(r.URL.Query().Get("until"), 10, 64); err == nil && until > 0 {
		pag.WithCursor(nostr.Timestamp(until))
	}

	page, err := pag.FetchNext(ctx)
	if err != nil {
		s.log.Warn("feed page fetch failed", "error", err)
		writeLoadError(w)
		return
	}

	authors := uniqueAuthors(page)
	profs, err := s.profiles.Fetch(ctx, authors)
	if err != nil {
		s.log.Warn("eligibility lookup failed", "error", err)
		writeLoadError(w)
		return
	}

	// Only threads whose author can actually receive zaps make the feed
	eligible := make([]*nostr.Event, 0, len(page))
	for _, ev := range page {
		if profs[ev.PubKey].Zappable() {
			eligible = append(eligible, ev)
		}
	}

	ids := make([]string, len(eligible))
	for i, ev := range eligible {
		ids[i] = ev.ID
	}

	var zapTotals map[string]int64
	var commentCounts map[string]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		zapTotals, err = s.agg.ZapTotals(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		commentCounts, err = s.agg.CommentCounts(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("aggregation failed", "error", err)
		writeLoadError(w)
		return
	}

	ranked := feed.Rank(eligible, mode, zapTotals)

	resp := feedResponse{
		Items:   make([]threadItem, 0, len(ranked)),
		HasMore: pag.HasMore(),
	}
	for _, ev := range ranked {
		item := s.toThreadItem(ev, profs[ev.PubKey].BestName(ev.PubKey), true)
		item.ZapSats = zapTotals[ev.ID]
		item.Comments = commentCounts[ev.ID]
		resp.Items = append(resp.Items, item)
	}
	if cursor, ok := pag.Cursor(); ok && pag.HasMore() {
		resp.NextCursor = int64(cursor)
	}
	writeJSON(w, http.StatusOK, resp)
}

type commentItem struct {
	ID          string `json:"id"`
	Pubkey      string `json:"pubkey"`
	AuthorName  string `json:"authorName"`
	Content     string `json:"content"`
	ContentHTML string `json:"contentHtml"`
	CreatedAt   int64  `json:"createdAt"`
}

type threadResponse struct {
	Thread   threadItem    `json:"thread"`
	Comments []commentItem `json:"comments"`
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref, err := entities.ParseRef(chi.URLParam(r, "code"))
	if err != nil || ref.Type != "note" {
		writeNotFound(w)
		return
	}

	ev, err := s.client.FetchEvent(ctx, ref.ID)
	if err != nil {
		writeNotFound(w)
		return
	}

	// Both comment representations reference the thread, with different
	// tag families
	replies, err := s.client.Query(ctx, []nostr.Filter{
		{Kinds: []int{nostrclient.KindComment}, Tags: nostr.TagMap{"E": []string{ref.ID}}},
		{Kinds: []int{nostrclient.KindNote}, Tags: nostr.TagMap{"e": []string{ref.ID}}},
	})
	if err != nil {
		s.log.Warn("thread replies fetch failed", "error", err)
		writeLoadError(w)
		return
	}
	replies = feed.Merge([][]*nostr.Event{replies})
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt < replies[j].CreatedAt
	})

	authors := uniqueAuthors(append([]*nostr.Event{ev}, replies...))
	profs, err := s.profiles.Fetch(ctx, authors)
	if err != nil {
		s.log.Warn("profile lookup failed", "error", err)
		writeLoadError(w)
		return
	}

	zapTotals, err := s.agg.ZapTotals(ctx, []string{ref.ID})
	if err != nil {
		s.log.Warn("zap aggregation failed", "error", err)
		writeLoadError(w)
		return
	}

	thread := s.toThreadItem(ev, profs[ev.PubKey].BestName(ev.PubKey), profs[ev.PubKey].Zappable())
	thread.ZapSats = zapTotals[ev.ID]
	thread.Comments = len(replies)

	resp := threadResponse{Thread: thread, Comments: make([]commentItem, 0, len(replies))}
	for _, reply := range replies {
		resp.Comments = append(resp.Comments, commentItem{
			ID:          reply.ID,
			Pubkey:      reply.PubKey,
			AuthorName:  profs[reply.PubKey].BestName(reply.PubKey),
			Content:     reply.Content,
			ContentHTML: renderContent(reply.Content),
			CreatedAt:   int64(reply.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ref, err := entities.ParseRef(code)
	if err != nil {
		writeNotFound(w)
		return
	}
	path := "/api/thread/" + code
	if ref.Type == "profile" {
		path = "/api/author/" + code
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"type": ref.Type,
		"id":   ref.ID,
		"path": path,
	})
}

func (s *Server) toThreadItem(ev *nostr.Event, authorName string, zappable bool) threadItem {
	item := threadItem{
		ID:          ev.ID,
		Pubkey:      ev.PubKey,
		AuthorName:  authorName,
		Kind:        ev.Kind,
		Content:     ev.Content,
		ContentHTML: renderContent(ev.Content),
		CreatedAt:   int64(ev.CreatedAt),
		Zappable:    zappable,
	}
	if code, err := entities.NoteCode(ev.ID); err == nil {
		item.Code = code
	}
	if npub, err := entities.ProfileCode(ev.PubKey); err == nil {
		item.Npub = npub
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "title":
			if item.Title == "" {
				item.Title = tag[1]
			}
		case "t":
			item.Hashtags = append(item.Hashtags, tag[1])
		case "r":
			if item.URL == "" {
				item.URL = tag[1]
			}
		}
	}
	if item.Title == "" {
		item.Title = contentTitle(ev.Content)
	}
	return item
}

// contentTitle derives a list title for plain notes: first line, truncated
func contentTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}

func uniqueAuthors(events []*nostr.Event) []string {
	seen := make(map[string]struct{})
	authors := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.PubKey]; ok {
			continue
		}
		seen[ev.PubKey] = struct{}{}
		authors = append(authors, ev.PubKey)
	}
	return authors
}

// --- relay management ---

type relayRequest struct {
	URL   string `json:"url"`
	Read  *bool  `json:"read"`
	Write *bool  `json:"write"`
}

type relayResponse struct {
	Metadata   relays.Metadata `json:"metadata"`
	Generation uint64          `json:"generation"`
	// Unsigned relay-list announcement for the external signer to
	// publish, present after mutations
	RelayListEvent *nostr.Event `json:"relayListEvent,omitempty"`
}

func (s *Server) handleRelayList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, relayResponse{
		Metadata:   s.relays.Metadata(),
		Generation: s.relays.Generation(),
	})
}

func (s *Server) handleRelayAdd(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	read, write := true, true
	if req.Read != nil {
		read = *req.Read
	}
	if req.Write != nil {
		write = *req.Write
	}

	meta, err := s.relays.Add(req.URL, read, write)
	if err != nil {
		s.writeRelayError(w, err)
		return
	}
	s.log.LogRelayMutation("add", req.URL, len(meta.Relays), s.relays.Generation())
	s.writeRelayMutation(w, meta)
}

func (s *Server) handleRelayRemove(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	meta, err := s.relays.Remove(req.URL)
	if err != nil {
		s.writeRelayError(w, err)
		return
	}
	s.log.LogRelayMutation("remove", req.URL, len(meta.Relays), s.relays.Generation())
	s.writeRelayMutation(w, meta)
}

func (s *Server) handleRelayToggle(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	meta, err := s.relays.Toggle(req.URL)
	if err != nil {
		s.writeRelayError(w, err)
		return
	}
	s.log.LogRelayMutation("toggle", req.URL, len(meta.Relays), s.relays.Generation())
	s.writeRelayMutation(w, meta)
}

// handleRelayRefresh bumps the generation so every cached page and
// aggregate is recomputed on the next request
func (s *Server) handleRelayRefresh(w http.ResponseWriter, r *http.Request) {
	s.relays.Invalidate()
	writeJSON(w, http.StatusOK, relayResponse{
		Metadata:   s.relays.Metadata(),
		Generation: s.relays.Generation(),
	})
}

func (s *Server) writeRelayMutation(w http.ResponseWriter, meta relays.Metadata) {
	writeJSON(w, http.StatusOK, relayResponse{
		Metadata:       meta,
		Generation:     s.relays.Generation(),
		RelayListEvent: compose.NewRelayListEvent(meta),
	})
}

func (s *Server) writeRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relays.ErrLastRelay):
		writeJSON(w, http.StatusConflict, errResponse{Error: "you need at least one relay connected"})
	case errors.Is(err, relays.ErrRelayExists):
		writeJSON(w, http.StatusConflict, errResponse{Error: "relay already configured"})
	case errors.Is(err, relays.ErrRelayNotFound):
		writeNotFound(w)
	case errors.Is(err, relays.ErrInvalidURL):
		writeBadRequest(w, "invalid relay url, expected ws:// or wss://")
	default:
		writeBadRequest(w, err.Error())
	}
}

// --- post creation and publishing ---

type createPostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	URL      string   `json:"url"`
	Hashtags []string `json:"hashtags"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	ev, err := compose.NewThreadPost(req.Title, req.Content, req.URL, req.Hashtags)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	// Signing happens outside this service; hand the draft back and let
	// the signer post it through /api/publish
	writeJSON(w, http.StatusOK, map[string]*nostr.Event{"event": ev})
}

// handlePublish sends an externally signed event to the write relays.
// Signature verification is the relays' job, not ours.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var ev nostr.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeBadRequest(w, "invalid event")
		return
	}
	if ev.ID == "" || ev.Sig == "" {
		writeBadRequest(w, "event must be signed")
		return
	}

	err := s.client.Publish(r.Context(), &ev)
	s.log.LogPublish(ev.Kind, ev.ID, err)
	if err != nil {
		writeLoadError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": ev.ID})
}
