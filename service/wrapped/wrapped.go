// Package wrapped orchestrates a full report run: fetch the snapshot
// from the server (or reuse the stored one), dump the raw JSON, compute
// per-user recaps, pull cover art, and write one static HTML report per
// user.
package wrapped

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dlclark/regexp2"
	"github.com/justinas/alice"

	"github.com/wrapped-fm/jellywrapped/db"
	"github.com/wrapped-fm/jellywrapped/models"
	"github.com/wrapped-fm/jellywrapped/pages"
	"github.com/wrapped-fm/jellywrapped/recap"
	"github.com/wrapped-fm/jellywrapped/service/jellyfin"
)

// ProgressFunc receives coarse textual milestones during a run. No run
// logic depends on it being set.
type ProgressFunc func(format string, v ...any)

// unsafeFilenameChars matches anything we won't put in a report filename.
var unsafeFilenameChars = regexp2.MustCompile(`[^\w .-]`, 0)

type Options struct {
	OutputDir     string
	TopSongs      int
	TopArtists    int
	Workers       int
	ReuseSnapshot bool
	Progress      ProgressFunc
}

type Service struct {
	client   *jellyfin.Client
	db       *db.DB // nil disables snapshot caching
	pages    *pages.Pages
	progress ProgressFunc
	opts     Options
}

func NewService(client *jellyfin.Client, database *db.DB, opts Options) *Service {
	progress := opts.Progress
	if progress == nil {
		progress = log.Printf
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		client:   client,
		db:       database,
		pages:    pages.NewPages(),
		progress: progress,
		opts:     opts,
	}
}

func (s *Service) assetsDir() string {
	return filepath.Join(s.opts.OutputDir, "assets")
}

// Generate runs one full wrapped generation. Any failure aborts the
// whole run; reports are only written once aggregation has finished for
// every user.
func (s *Service) Generate(ctx context.Context) error {
	if err := os.MkdirAll(s.assetsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	items, users, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	if err := s.dumpJSON("users.json", users); err != nil {
		return err
	}
	if err := s.dumpJSON("all_items.json", items); err != nil {
		return err
	}

	s.progress("Finding %d most listened songs and %d most listened artists...", s.opts.TopSongs, s.opts.TopArtists)
	recaps, err := recap.Compute(items, users, s.opts.TopSongs, s.opts.TopArtists)
	if err != nil {
		return err
	}

	if err := s.downloadCovers(ctx, users, recaps); err != nil {
		return err
	}

	for _, user := range users {
		if err := s.writeReport(user, recaps[user.Name]); err != nil {
			return err
		}
	}
	s.progress("Wrote %d reports to %s", len(users), s.opts.OutputDir)

	return nil
}

// snapshot returns the full item/user working set, either reloaded from
// the store or freshly fetched (and then stored).
func (s *Service) snapshot(ctx context.Context) ([]models.MediaItem, []models.User, error) {
	if s.opts.ReuseSnapshot && s.db != nil {
		items, users, err := s.db.LoadSnapshot()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reuse snapshot: %w", err)
		}
		s.progress("Reusing stored snapshot: %d items, %d users.", len(items), len(users))
		return items, users, nil
	}

	s.progress("Retrieving item info...")
	items, err := s.client.GetAudioItems(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.progress("Finished retrieving item info for %d items.", len(items))

	s.progress("Retrieving users...")
	users, err := s.client.GetUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.progress("Found %d users.", len(users))

	s.progress("Adding userdata to items...")
	if err := s.enrich(ctx, items, users); err != nil {
		return nil, nil, err
	}
	s.progress("Finished adding userdata to items.")

	if s.db != nil {
		if err := s.db.SaveSnapshot(items, users); err != nil {
			return nil, nil, fmt.Errorf("failed to store snapshot: %w", err)
		}
	}

	return items, users, nil
}

// enrich fetches play statistics for every (item, user) pair. Items fan
// out across a bounded worker pool; each worker owns one item's
// UserData map so no map is written from two goroutines. The first
// error cancels the rest of the fetch.
func (s *Service) enrich(ctx context.Context, items []models.MediaItem, users []models.User) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	errCh := make(chan error, 1)
	var done atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				item := &items[idx]
				item.UserData = make(map[string]models.PlayStats, len(users))
				for _, user := range users {
					stats, err := s.client.GetUserData(ctx, item.ID, user.ID)
					if err != nil {
						select {
						case errCh <- err:
						default:
						}
						cancel()
						return
					}
					item.UserData[user.Name] = stats
				}
				n := done.Add(1)
				if n%50 == 0 || n == int64(len(items)) {
					s.progress("Fetched statistics for %d/%d items", n, len(items))
				}
			}
		}()
	}

feed:
	for i := range items {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return ctx.Err()
}

// dumpJSON writes a raw snapshot file into the output dir.
func (s *Service) dumpJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.opts.OutputDir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// downloadCovers pulls each user's top-song primary image into assets/,
// once per distinct item.
func (s *Service) downloadCovers(ctx context.Context, users []models.User, recaps map[string]models.UserRecap) error {
	fetched := make(map[string]bool)
	for _, user := range users {
		imageID := recap.TopSongImageID(recaps[user.Name])
		if imageID == "" || fetched[imageID] {
			continue
		}
		if err := s.client.DownloadImage(ctx, imageID, s.assetsDir()); err != nil {
			return err
		}
		fetched[imageID] = true
	}
	return nil
}

func (s *Service) writeReport(user models.User, r models.UserRecap) error {
	params := pages.NewWrappedParams(user.Name, r, recap.TopSongImageID(r))

	name := filepath.Join(s.opts.OutputDir, sanitizeFilename(user.Name)+"_jellyfin_wrapped.html")
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create report for %s: %w", user.Name, err)
	}
	defer f.Close()

	if err := s.pages.Execute("wrapped", f, params); err != nil {
		return fmt.Errorf("failed to render report for %s: %w", user.Name, err)
	}
	return nil
}

// sanitizeFilename keeps user display names filesystem-safe without
// changing ordinary names.
func sanitizeFilename(name string) string {
	cleaned, err := unsafeFilenameChars.Replace(name, "_", -1, -1)
	if err != nil {
		return "user"
	}
	return cleaned
}

// Serve exposes the output directory over HTTP so the generated reports
// can be previewed in a browser.
func (s *Service) Serve(addr string) error {
	chain := alice.New(recoverPanic, logRequests)
	handler := chain.Then(http.FileServer(http.Dir(s.opts.OutputDir)))

	log.Printf("Serving reports from %s at http://%s", s.opts.OutputDir, addr)
	return http.ListenAndServe(addr, handler)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s: %v", r.URL.Path, rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
