package middleware

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// Route classes for admission control. Each class carries its own window and
// budget; the general class applies app-wide on top of any per-route class.
type LimitClass string

const (
	ClassGeneral  LimitClass = "general"
	ClassLogin    LimitClass = "login"
	ClassSignup   LimitClass = "signup"
	ClassVerify   LimitClass = "verify"
	ClassUpload   LimitClass = "upload"
	ClassDownload LimitClass = "download"
	ClassDelete   LimitClass = "delete"
)

// Limit is the admission budget of one class: at most Max requests per client
// within Window.
type Limit struct {
	Window time.Duration
	Max    int
}

// DefaultLimits returns the admission control table.
func DefaultLimits() map[LimitClass]Limit {
	return map[LimitClass]Limit{
		ClassGeneral:  {Window: 15 * time.Minute, Max: 100},
		ClassLogin:    {Window: 15 * time.Minute, Max: 5},
		ClassSignup:   {Window: 60 * time.Minute, Max: 10},
		ClassVerify:   {Window: 60 * time.Minute, Max: 20},
		ClassUpload:   {Window: 60 * time.Second, Max: 10},
		ClassDownload: {Window: 60 * time.Second, Max: 30},
		ClassDelete:   {Window: 60 * time.Second, Max: 20},
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks per-client token buckets for every route class. Keys are
// client IPs; buckets refill continuously at Max/Window with a burst of Max.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[LimitClass]Limit
	entries  map[string]*limiterEntry
	disabled bool

	// now is swappable in tests to step through refill windows.
	now func() time.Time
}

// NewRateLimiter builds a limiter over the given class table. When disabled,
// every Allow call passes and a warning is logged once at construction.
func NewRateLimiter(limits map[LimitClass]Limit, disabled bool) *RateLimiter {
	if disabled {
		logRateLimit("warn", "rate_limiting_disabled", "all admission control is bypassed")
	}
	return &RateLimiter{
		limits:   limits,
		entries:  make(map[string]*limiterEntry),
		disabled: disabled,
		now:      time.Now,
	}
}

// Allow reports whether one request from key is admitted under class, and the
// suggested retry delay when it is not.
func (rl *RateLimiter) Allow(class LimitClass, key string) (bool, time.Duration) {
	if rl.disabled {
		return true, 0
	}
	lim, ok := rl.limits[class]
	if !ok {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entryKey := string(class) + "|" + key
	e, ok := rl.entries[entryKey]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(lim.Window/time.Duration(lim.Max)), lim.Max),
		}
		rl.entries[entryKey] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		return true, 0
	}
	// One token refills every Window/Max.
	return false, lim.Window / time.Duration(lim.Max)
}

// Evict drops buckets idle longer than maxIdle. Meant to be called from a
// janitor goroutine.
func (rl *RateLimiter) Evict(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	evicted := 0
	for k, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, k)
			evicted++
		}
	}
	return evicted
}

// StartJanitor evicts idle buckets on the given interval until stop is closed.
func (rl *RateLimiter) StartJanitor(interval, maxIdle time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Evict(maxIdle)
			case <-stop:
				return
			}
		}
	}()
}

// Middleware returns a fiber handler enforcing the given class for the
// requesting client IP. Rejections get a 429 JSON body and a Retry-After
// header in whole seconds.
func (rl *RateLimiter) Middleware(class LimitClass) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, retryAfter := rl.Allow(class, c.IP())
		if !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		}
		return c.Next()
	}
}

func logRateLimit(level, event, msg string) {
	entry := map[string]any{
		"level":     level,
		"component": "ratelimit",
		"event":     event,
		"msg":       msg,
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
