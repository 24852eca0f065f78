package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/demand-desk/internal/adapter/storage"
	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/service"
	"github.com/rl1809/demand-desk/internal/core/workflow"
)

const (
	redisAddr     = "localhost:6379"
	fiscalYear    = "stress/001"
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous test data
	keys, _ := rdb.Keys(ctx, "formno:"+fiscalYear+":*").Result()
	for _, k := range keys {
		rdb.Del(ctx, k)
	}

	store := storage.NewMemoryStore()
	demandService := service.NewDemandService(store, store, storage.NewRedisAdapter(rdb, 0), nil)

	// Every session is opened before any submit, so all of them claim form 1.
	sessions := make([]*workflow.Session, totalRequests)
	for i := range sessions {
		actor := domain.Actor{Name: fmt.Sprintf("requester-%d", i), Role: domain.RoleRequester}
		sess, err := demandService.OpenSession(ctx, service.OpenOptions{Mode: workflow.ModeNew, Actor: actor, FiscalYear: fiscalYear})
		if err != nil {
			log.Fatalf("failed to open session: %v", err)
		}
		sess.SetDate("2081/08/10")
		sess.SetPurpose("stress")
		sessions[i] = sess
	}

	// Counters
	var successCount atomic.Int32
	var conflictCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent submissions
	var wg sync.WaitGroup
	start := time.Now()

	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *workflow.Session) {
			defer wg.Done()

			_, err := demandService.Submit(ctx, sess)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflictCount.Add(1)
			default:
				failCount.Add(1)
			}
		}(sess)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	conflict := conflictCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Fiscal Year:      %s\n", fiscalYear)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Numbered:         %d\n", success)
	fmt.Printf("Conflicts:        %d\n", conflict)
	fmt.Printf("Other Failures:   %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == 1 && conflict == totalRequests-1 {
		fmt.Printf("PASS: Exactly 1 request numbered, %d refused\n", totalRequests-1)
	} else {
		fmt.Printf("FAIL: Expected 1 numbered/%d conflicts, got %d/%d\n", totalRequests-1, success, conflict)
	}

	next, _ := demandService.NextFormNumber(ctx, fiscalYear)
	stored, _ := store.ListByFiscalYear(ctx, fiscalYear)
	fmt.Printf("Stored Requests:  %d, next form number %d\n", len(stored), next)

	if len(stored) == 1 && next == 2 {
		fmt.Println("PASS: Numbering stays dense")
	} else {
		fmt.Printf("FAIL: Expected 1 stored request and next number 2\n")
	}
}
