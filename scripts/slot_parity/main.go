// Command slot_parity compares the slot lists and enrollment tallies of courses between the
// PostgreSQL store and the content store. It exits non-zero when any course differs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nitro-academy/turma-scheduler/internal/integrations/contentstore"
	"github.com/nitro-academy/turma-scheduler/internal/models"
	"github.com/nitro-academy/turma-scheduler/internal/repository"
	"github.com/nitro-academy/turma-scheduler/internal/scheduling"
	"github.com/nitro-academy/turma-scheduler/pkg/config"
	"github.com/nitro-academy/turma-scheduler/pkg/database"
)

type slotReader interface {
	ListSlots(ctx context.Context, courseID string) (*models.CourseSchedule, error)
	CountEnrollmentsPerSlot(ctx context.Context, courseID string) (map[int]int, error)
}

type comparison struct {
	CourseID    string
	Differences []string
	Error       error
	Duration    time.Duration
}

func main() {
	var (
		courses string
		timeout time.Duration
	)
	flag.StringVar(&courses, "courses", "", "Comma separated course IDs to compare")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Per-course timeout")
	flag.Parse()

	ids := splitIDs(courses)
	if len(ids) == 0 {
		log.Fatal("no courses given, use -courses id1,id2")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	primary := repository.NewCourseSlotRepository(db)
	client := contentstore.NewClient(cfg.ContentStore.URL, cfg.ContentStore.Token, cfg.ContentStore.Timeout, zap.NewNop())
	secondary := contentstore.NewSlotStore(client)

	var results []comparison
	failed := 0
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		res := compareCourse(ctx, primary, secondary, id)
		cancel()
		if res.Error != nil || len(res.Differences) > 0 {
			failed++
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Courses compared: %d, with differences: %d\n", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func compareCourse(ctx context.Context, primary, secondary slotReader, courseID string) (res comparison) {
	start := time.Now()
	res.CourseID = courseID
	defer func() { res.Duration = time.Since(start) }()

	a, err := primary.ListSlots(ctx, courseID)
	if err != nil {
		res.Error = fmt.Errorf("postgres: %w", err)
		return res
	}
	b, err := secondary.ListSlots(ctx, courseID)
	if err != nil {
		res.Error = fmt.Errorf("content store: %w", err)
		return res
	}
	res.Differences = diffSlots(a.Slots, b.Slots)

	countsA, err := primary.CountEnrollmentsPerSlot(ctx, courseID)
	if err != nil {
		res.Error = fmt.Errorf("postgres enrollments: %w", err)
		return res
	}
	countsB, err := secondary.CountEnrollmentsPerSlot(ctx, courseID)
	if err != nil {
		res.Error = fmt.Errorf("content store enrollments: %w", err)
		return res
	}
	res.Differences = append(res.Differences, diffCounts(countsA, countsB)...)
	return res
}

// diffSlots compares slots position by position. Slot IDs are ignored because the content store
// derives them when a turma has no uid.
func diffSlots(a, b []models.CourseSlot) []string {
	var diffs []string
	if len(a) != len(b) {
		diffs = append(diffs, fmt.Sprintf("slot count: postgres=%d content_store=%d", len(a), len(b)))
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if left, right := describe(a[i]), describe(b[i]); left != right {
			diffs = append(diffs, fmt.Sprintf("class %d: postgres=%s content_store=%s", i+1, left, right))
		}
	}
	return diffs
}

func diffCounts(a, b map[int]int) []string {
	keys := make(map[int]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	ordered := make([]int, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Ints(ordered)

	var diffs []string
	for _, k := range ordered {
		if a[k] != b[k] {
			diffs = append(diffs, fmt.Sprintf("class %d enrollments: postgres=%d content_store=%d", k, a[k], b[k]))
		}
	}
	return diffs
}

func describe(slot models.CourseSlot) string {
	parts := []string{scheduling.UIKey(slot.DayOfWeek), scheduling.DisplayTimeLabel(slot.StartTime)}
	for _, v := range []*string{slot.StartDate, slot.EndDate, slot.JoinLink} {
		if v != nil {
			parts = append(parts, *v)
		} else {
			parts = append(parts, "-")
		}
	}
	return strings.Join(parts, "|")
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printReport(results []comparison) {
	fmt.Println("Slot Parity Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if len(res.Differences) > 0 {
			status = "DIFF"
		}
		fmt.Printf("[%s] course %s (%s)\n", status, res.CourseID, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		}
		for _, d := range res.Differences {
			fmt.Printf("  %s\n", d)
		}
	}
}
