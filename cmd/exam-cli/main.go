package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/database"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/logger"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/validator"
	"github.com/stemsi/exstem-portal/internal/worker"
	"golang.org/x/term"
)

func main() {
	examCode := flag.String("exam", "", "exam code to take")
	batch := flag.String("batch", "", "batch name")
	email := flag.String("email", "", "sign-in email (prompted when empty)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// Logs go to stderr so the exam on stdout stays readable.
	log := logger.New(os.Stderr, "exam-cli", cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.IdentityStore == config.IdentityStoreRedis {
		var err error
		rdb, err = database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	store, err := identity.OpenStore(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open identity store")
	}
	idc := identity.NewContext(store)

	apiClient := client.New(client.Config{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.APITimeout,
		RatePerSecond: cfg.APIRatePerSec,
		OnSessionExpired: func() {
			fmt.Println("\nYour session has expired. Run exam-cli again to sign in.")
		},
	}, idc, log)
	authService := service.NewAuthService(apiClient, idc, log)
	catalogService := service.NewCatalogService(apiClient)

	in := bufio.NewScanner(os.Stdin)

	// ─── Sign In ───────────────────────────────────────────────────────
	id, err := signIn(ctx, in, idc, authService, *email)
	if err != nil {
		fmt.Println("Sign-in failed:", service.UserMessage(err))
		os.Exit(1)
	}
	fmt.Printf("Signed in as %s\n\n", id.User)

	code := *examCode
	if code == "" {
		code = prompt(in, "Exam code: ")
	}
	if code == "" {
		fmt.Println("Error: exam code is required")
		os.Exit(1)
	}

	// ─── Load Exam ─────────────────────────────────────────────────────
	if !confirmExam(ctx, in, catalogService, code) {
		return
	}
	sess := service.NewExamSession(apiClient, idc, log)
	defer sess.Close()
	if !load(ctx, in, sess, code, *batch) {
		return
	}

	runner := worker.NewRunner(sess, worker.RunnerOptions{AutosaveEvery: cfg.AutosaveEvery}, log)
	runner.Start(ctx)
	defer runner.Stop()

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	go announce(events)

	run(ctx, in, sess, log)
}

// signIn reuses a cached student identity or asks for credentials.
func signIn(ctx context.Context, in *bufio.Scanner, idc *identity.Context, auth *service.AuthService, email string) (model.Identity, error) {
	id, err := idc.Current(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	if id.Present && !id.Expired(idc.Now()) && id.UserType == model.UserTypeStudent {
		return id, nil
	}

	fmt.Println("=== ExStem Exam Sign In ===")
	if email == "" {
		hint := ""
		if id.RememberEmail != "" {
			hint = fmt.Sprintf(" [%s]", id.RememberEmail)
		}
		email = prompt(in, "Email"+hint+": ")
		if email == "" {
			email = id.RememberEmail
		}
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return model.Identity{}, fmt.Errorf("read password: %w", err)
	}

	return auth.Login(ctx, model.LoginRequest{
		Email:    email,
		Password: string(password),
		Remember: true,
	})
}

// confirmExam shows the listed exam and waits for the learner to start the
// clock. A listing the backend cannot serve does not block the exam itself.
func confirmExam(ctx context.Context, in *bufio.Scanner, catalog *service.CatalogService, code string) bool {
	exam, err := catalog.LookupExam(ctx, code)
	switch {
	case errors.Is(err, service.ErrExamNotListed), errors.Is(err, client.ErrSessionExpired):
		fmt.Println(service.UserMessage(err))
		return false
	case err != nil:
		fmt.Println("Could not look up the exam:", service.UserMessage(err))
		return true
	}

	fmt.Printf("%s (%s): %d minutes", exam.Name, exam.Code, exam.DurationMinutes)
	if exam.QuestionCount > 0 {
		fmt.Printf(", %d questions", exam.QuestionCount)
	}
	fmt.Println()
	answer := strings.ToLower(prompt(in, "Start now? The clock begins once the exam loads. [Y/n] "))
	return answer != "n" && answer != "no" && ctx.Err() == nil
}

// load fetches the exam, offering a retry after every failure.
func load(ctx context.Context, in *bufio.Scanner, sess *service.ExamSession, code, batch string) bool {
	for {
		fmt.Printf("Loading exam %s...\n", code)
		err := sess.Load(ctx, code, batch)
		if err == nil {
			v := sess.View()
			fmt.Printf("%s: %d questions, %s on the clock\n\n", v.ExamName, v.Total, v.Clock)
			return true
		}
		if errors.Is(err, client.ErrSessionExpired) {
			fmt.Println(service.UserMessage(err))
			return false
		}

		fmt.Println("Could not load the exam:", service.UserMessage(err))
		answer := strings.ToLower(prompt(in, "Retry? [Y/n] "))
		if answer == "n" || answer == "no" || ctx.Err() != nil {
			return false
		}
	}
}

// announce prints the events the learner did not cause: clock warnings and
// the auto-submission.
func announce(events <-chan service.Event) {
	for e := range events {
		switch e.Type {
		case service.EventTick:
			if e.Remaining > 0 && (e.Remaining%60 == 0 || e.Remaining <= 10) {
				fmt.Printf("\n[%s remaining]\n> ", e.Clock)
			}
		case service.EventSubmitting:
			if e.Trigger == model.TriggerAuto {
				fmt.Println("\nTime is up. Submitting your answers...")
			}
		case service.EventSubmitted:
			if e.Trigger == model.TriggerAuto {
				fmt.Print("Submitted. Type 'review' to see your results.\n> ")
			}
		case service.EventSubmitFailed:
			fmt.Printf("\nSubmission failed: %s\n> ", e.Message)
		}
	}
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
