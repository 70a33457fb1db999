package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/repository"
)

// Notice is what one share delivery carries to the recipient
type Notice struct {
	ShareID     string `json:"shareId"`
	SubjectKind string `json:"subjectKind"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	OwnerName   string `json:"ownerName"`
	Label       string `json:"label"`
}

// NotificationSink delivers a notice to one user's active connections
type NotificationSink interface {
	Notify(ctx context.Context, userID string, notice Notice) error
}

// SessionRegistry reports which users currently hold a live connection
type SessionRegistry interface {
	ActiveUserIDs() []string
}

// NotifierStatus describes the notifier loop for the health endpoint
type NotifierStatus struct {
	Running          bool      `json:"running"`
	Enabled          bool      `json:"enabled"`
	LastRun          time.Time `json:"lastRun,omitempty"`
	LastRunDuration  string    `json:"lastRunDuration,omitempty"`
	Delivered        int       `json:"delivered"`
	Failures         int       `json:"failures"`
	NextScheduledRun time.Time `json:"nextScheduledRun,omitempty"`
}

// NotifierService polls for active shares addressed to connected users and
// delivers each one exactly once. The status compare-and-set is the dedup
// mechanism: whichever pass wins the active-to-notified transition is the
// only pass that talks to the sink for that share.
type NotifierService struct {
	shareRepo       repository.ShareRepo
	userRepo        repository.UserRepo
	sessions        SessionRegistry
	sink            NotificationSink
	intervalSeconds int
	metrics         *observability.BusinessMetrics

	mu       sync.RWMutex
	enabled  bool
	running  bool
	stopChan chan struct{}
	status   NotifierStatus
	ticker   *time.Ticker
}

// NewNotifierService creates a new NotifierService
func NewNotifierService(
	shareRepo repository.ShareRepo,
	userRepo repository.UserRepo,
	sessions SessionRegistry,
	sink NotificationSink,
	intervalSeconds int,
) *NotifierService {
	if intervalSeconds <= 0 {
		intervalSeconds = 15 // Default polling interval
	}

	return &NotifierService{
		shareRepo:       shareRepo,
		userRepo:        userRepo,
		sessions:        sessions,
		sink:            sink,
		intervalSeconds: intervalSeconds,
		stopChan:        make(chan struct{}),
		enabled:         true,
		status: NotifierStatus{
			Enabled: true,
		},
	}
}

// SetMetrics attaches delivery counters to the notifier
func (s *NotifierService) SetMetrics(metrics *observability.BusinessMetrics) {
	s.metrics = metrics
}

// Start begins the background polling loop
func (s *NotifierService) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return // Already started
	}
	s.enabled = true
	s.status.Enabled = true
	s.stopChan = make(chan struct{})
	interval := time.Duration(s.intervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	s.ticker = ticker
	stopChan := s.stopChan
	s.status.NextScheduledRun = time.Now().Add(interval)
	s.mu.Unlock()

	log.Printf("Share notifier started (runs every %d seconds)", s.intervalSeconds)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.status.NextScheduledRun = time.Now().Add(time.Duration(s.intervalSeconds) * time.Second)
				s.mu.Unlock()
				s.runPass()
			case <-stopChan:
				log.Println("Share notifier stopped")
				return
			}
		}
	}()
}

// Stop stops the notifier service
func (s *NotifierService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return // Already stopped
	}

	// Start keys "already running" off the ticker, so it must be torn
	// down here, not in the loop goroutine.
	s.ticker.Stop()
	s.ticker = nil
	s.enabled = false
	s.status.Enabled = false
	close(s.stopChan)
}

// IsEnabled returns whether the notifier is enabled
func (s *NotifierService) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// GetStatus returns the current notifier status
func (s *NotifierService) GetStatus() NotifierStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RunNow triggers an immediate pass
func (s *NotifierService) RunNow() {
	go s.runPass()
}

// runPass delivers pending shares to every connected recipient
func (s *NotifierService) runPass() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return // Previous pass still in flight
	}
	s.running = true
	s.status.Running = true
	s.mu.Unlock()

	startTime := time.Now()
	ctx := context.Background()

	delivered := 0
	failures := 0

	connected := make(map[string]bool)
	for _, userID := range s.sessions.ActiveUserIDs() {
		connected[userID] = true
	}

	recipients, err := s.shareRepo.RecipientsWithPending(ctx)
	if err != nil {
		log.Printf("Notifier: failed to list pending recipients: %v", err)
		s.finishPass(startTime, 0, 1)
		return
	}

	for _, userID := range recipients {
		// Disconnected recipients keep their shares active until they
		// come back.
		if !connected[userID] {
			continue
		}

		pending, err := s.shareRepo.ListByRecipient(ctx, userID, models.ShareActive)
		if err != nil {
			log.Printf("Notifier: failed to list pending shares for user %s: %v", userID, err)
			failures++
			continue
		}

		for _, record := range pending {
			// Claim the share before delivering. Losing here means a
			// concurrent accept, revoke, or pass got there first.
			claimed, err := s.shareRepo.CompareAndSetStatus(ctx, record.ID, models.ShareActive, models.ShareNotified)
			if err != nil {
				log.Printf("Notifier: failed to mark share %s notified: %v", record.ID, err)
				failures++
				continue
			}
			if !claimed {
				continue
			}

			notice := s.buildNotice(ctx, record)
			if err := s.sink.Notify(ctx, userID, notice); err != nil {
				// The share stays notified; the recipient still finds it
				// in their inbox on next fetch.
				log.Printf("Notifier: delivery failed for share %s: %v", record.ID, err)
				if s.metrics != nil {
					s.metrics.RecordNoticeFailure(ctx)
				}
				failures++
				continue
			}
			if s.metrics != nil {
				s.metrics.RecordNoticeDelivered(ctx)
			}
			delivered++
		}
	}

	s.finishPass(startTime, delivered, failures)
}

func (s *NotifierService) finishPass(startTime time.Time, delivered, failures int) {
	duration := time.Since(startTime)

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.LastRun = startTime
	s.status.LastRunDuration = duration.Round(time.Millisecond).String()
	s.status.Delivered += delivered
	s.status.Failures += failures
	s.mu.Unlock()

	if delivered > 0 || failures > 0 {
		log.Printf("Notifier pass completed: %d delivered, %d failures in %s",
			delivered, failures, duration.Round(time.Millisecond))
	}
}

// buildNotice composes the user-facing notification text for a share
func (s *NotifierService) buildNotice(ctx context.Context, record *models.ShareRecord) Notice {
	ownerName := "Un utilisateur"
	if owner, err := s.userRepo.GetByID(ctx, record.OwnerID); err == nil && owner != nil {
		ownerName = owner.DisplayName()
	}

	title := "Nouveau partage"
	body := ownerName + " a partagé un élément avec vous"
	switch record.SubjectKind {
	case models.SubjectVisitor:
		title = "Visite partagée"
		body = ownerName + " a partagé une visite avec vous : " + record.Snapshot.Label
	case models.SubjectDocument:
		title = "Document partagé"
		body = ownerName + " a partagé un document avec vous : " + record.Snapshot.Label
	}

	return Notice{
		ShareID:     record.ID,
		SubjectKind: string(record.SubjectKind),
		Title:       title,
		Body:        body,
		OwnerName:   ownerName,
		Label:       record.Snapshot.Label,
	}
}
