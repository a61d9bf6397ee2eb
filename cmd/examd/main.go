package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	api "github.com/solymanHossen/online-exam-sub000/internal/api/http"
	"github.com/solymanHossen/online-exam-sub000/internal/auth"
	"github.com/solymanHossen/online-exam-sub000/internal/config"
	"github.com/solymanHossen/online-exam-sub000/internal/db"
	"github.com/solymanHossen/online-exam-sub000/internal/evalqueue"
	"github.com/solymanHossen/online-exam-sub000/internal/eventlog"
	"github.com/solymanHossen/online-exam-sub000/internal/exam"
	"github.com/solymanHossen/online-exam-sub000/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	if err := seedAdmin(dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	ranker := exam.NewRecalculator(store)
	evaluator := exam.NewEvaluator(store, ranker, nil)
	events := eventlog.NewRepo(dbh)

	queue := evalqueue.New(store, evaluator, evalqueue.Options{
		Workers:    cfg.EvalWorkers,
		Buffer:     cfg.EvalQueueBuffer,
		MaxRetries: cfg.EvalMaxRetries,
	})
	queue.OnEvaluated = func(attemptID string) {
		if err := events.Append(context.Background(), eventlog.Event{
			Type: eventlog.TypeAttemptEvaluated,
			Key:  attemptID,
		}); err != nil {
			log.Printf("event log: attempt %s: %v", attemptID, err)
		}
	}

	sweeper := exam.NewSweeper(store, queue.Enqueue,
		time.Duration(cfg.SweepIntervalSec)*time.Second, nil)

	authSvc := auth.NewService(cfg.AuthSecret)
	capture := exam.NewCapture(store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", api.RegisterHandler(dbh))
	r.Post("/auth/login", api.LoginHandler(dbh, authSvc))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.UploadExamHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))

		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.CreateAttemptHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers", api.RecordAnswerHandler(capture))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store, queue, events))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))

		pr.With(rbac.Require("leaderboard:view")).
			Get("/exams/{examID}/leaderboard", api.LeaderboardHandler(store))
		pr.With(rbac.Require("stats:view")).
			Get("/exams/{examID}/stats", api.QuestionStatsHandler(store))
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := queue.Run(runCtx); err != nil {
			log.Printf("eval queue: %v", err)
		}
	}()
	go sweeper.Run(runCtx)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("examd listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
}

// seedAdmin ensures the configured admin account exists. Skipped when no
// bcrypt hash is configured.
func seedAdmin(dbh *sql.DB, user, passHash string) error {
	if user == "" || passHash == "" {
		return nil
	}
	_, err := dbh.Exec(
		`INSERT INTO users (id,username,pass_hash,role,created_at)
		 VALUES ($1,$2,$3,'admin',$4)
		 ON CONFLICT (username) DO UPDATE SET pass_hash=EXCLUDED.pass_hash, role='admin'`,
		uuid.NewString(), user, passHash, time.Now().Unix())
	return err
}
