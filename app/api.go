package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib"
	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/lib/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service, sched *scheduler.Scheduler) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc, sched)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("HTTP server stopped", "err", err)
				}
			}()
			log.Sugar().Infow("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service, sched *scheduler.Scheduler) http.Handler {
	ctrl := &controller{log, svc, sched}

	// Adding a subscription renders the page once.
	addTimeout := 2 * cfg.Scraper.Timeout
	if addTimeout <= 0 {
		addTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("slotwatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/users/{user_id}/subscriptions", func(r chi.Router) {
			r.Use(middleware.Timeout(addTimeout))
			r.Get("/", ctrl.listSubscriptions)
			r.Post("/", ctrl.addSubscription)
			r.Delete("/", ctrl.removeSubscription)
		})
		r.Post("/cycles", ctrl.runCycle)
	})

	return r
}

type controller struct {
	log   *zap.Logger
	svc   *lib.Service
	sched *scheduler.Scheduler
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) rejectService(w http.ResponseWriter, err error) {
	status, message := describeError(err)
	if status >= http.StatusInternalServerError {
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
	}
	ctrl.reject(w, status, errors.New(message))
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	subs, err := ctrl.svc.ListSubscriptions(ctx, userID)
	if err != nil {
		ctrl.rejectService(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Subscription, SubscriptionView](subs))
}

func (ctrl *controller) addSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")
	url := r.FormValue("url")
	platform := r.FormValue("platform")
	announce, _ := strconv.ParseBool(r.FormValue("announce"))

	if url == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	res, err := ctrl.svc.AddSubscription(ctx, userID, platform, url)
	if err != nil {
		ctrl.rejectService(w, err)
		return
	}

	view := AddSubscriptionView{
		Subscription: SubscriptionView{}.From(*res.Subscription),
		Created:      res.Created,
	}
	if announce && res.Created {
		if err := ctrl.svc.AnnounceInitial(ctx, res); err != nil {
			ctrl.log.Sugar().Warnw("Failed to announce initial slots", "user_id", userID, "url", res.Subscription.URL, "err", err)
		} else {
			view.Announced = true
		}
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ctrl.resolve(w, status, view)
}

func (ctrl *controller) removeSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")
	url := r.URL.Query().Get("url")

	if url == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	removed, err := ctrl.svc.RemoveSubscription(ctx, userID, url)
	if err != nil {
		ctrl.rejectService(w, err)
		return
	}
	if !removed {
		ctrl.reject(w, http.StatusNotFound, models.ErrSubscriptionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *controller) runCycle(w http.ResponseWriter, r *http.Request) {
	// Runs to completion even if the client disconnects.
	ctx := context.WithoutCancel(r.Context())

	start := time.Now()
	report, err := ctrl.sched.RunCycle(ctx)
	if errors.Is(err, scheduler.ErrCycleInProgress) {
		ctrl.reject(w, http.StatusConflict, err)
		return
	} else if err != nil {
		ctrl.rejectService(w, err)
		return
	}

	ctrl.log.Sugar().Infow("Manual cycle finished", "cycle_id", report.ID, "elapsed_msecs", time.Since(start).Milliseconds())
	ctrl.resolve(w, http.StatusOK, CycleView{}.From(report))
}
