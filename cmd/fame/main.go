package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fame/internal/api"
	"fame/internal/app"
	"fame/internal/config"
	"fame/internal/diet"
	"fame/internal/llm"
	"fame/internal/logger"
	"fame/internal/planner"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	application, cleanup, err := app.Bootstrap(ctx, cfg, log, nil)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	args := os.Args[2:]
	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, application, args)
	case "show":
		err = runShow(ctx, application, args)
	case "delete-meal":
		err = runDeleteMeal(ctx, application, args)
	case "export":
		err = runExport(application, args)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(args)

		var affected int64
		affected, err = application.CleanupMetrics(ctx, *days)
		if err == nil {
			fmt.Printf("Successfully removed %d old metric records.\n", affected)
		}
	case "token":
		err = runToken(cfg, args)
	case "profile":
		err = runProfile(ctx, application, args)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		cleanup()
		log.Fatal(os.Args[1]+" failed", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println("Usage: fame <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate          Generate the plan for a user (-user, -week, -email, -to)")
	fmt.Println("  show              Print a user's latest plan, or the plan of -week")
	fmt.Println("  delete-meal       Remove one meal from a stored plan (-user, -week, -day, -meal)")
	fmt.Println("  export            Print the archived JSON copy of a plan (-user, -week, -out)")
	fmt.Println("  metrics-cleanup   Remove old metric records")
	fmt.Println("  token             Issue an API bearer token for a user")
	fmt.Println("  profile           Create or update a user profile")
}

func requireUser(fs *flag.FlagSet, user string) error {
	if user == "" {
		fs.Usage()
		return fmt.Errorf("-user is required")
	}
	return nil
}

func runGenerate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	user := fs.String("user", "", "User id")
	week := fs.String("week", "", "Monday to plan (YYYY-MM-DD), defaults to next Monday")
	email := fs.Bool("email", false, "Email the plan to the profile address")
	to := fs.String("to", "", "Comma separated recipients (implies -email)")
	fs.Parse(args)
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	opts := app.GenerateOptions{Email: *email}
	if *week != "" {
		w, err := planner.ParseWeek(*week)
		if err != nil {
			return err
		}
		opts.Week = w
	}
	if *to != "" {
		opts.Email = true
		opts.Recipients = strings.Split(*to, ",")
	}

	out, err := a.GenerateForUser(ctx, *user, opts)
	if err != nil {
		return err
	}

	printPlan(out.Plan)
	if out.Result.Demo {
		fmt.Println("\nNote: demo plan, no provider answered.")
	}
	if opts.Email {
		if out.EmailErr != nil {
			fmt.Printf("\nEmail not sent: %v\n", out.EmailErr)
		} else {
			fmt.Printf("\nEmailed to %s\n", strings.Join(out.Recipients, ", "))
		}
	}
	return nil
}

func runShow(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	user := fs.String("user", "", "User id")
	week := fs.String("week", "", "Week start (YYYY-MM-DD), defaults to the latest plan")
	fs.Parse(args)
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	var plan *planner.StoredPlan
	var err error
	if *week == "" {
		plan, err = a.LatestPlan(ctx, *user)
	} else {
		var w time.Time
		if w, err = planner.ParseWeek(*week); err != nil {
			return err
		}
		plan, err = a.PlanForWeek(ctx, *user, w)
	}
	if err != nil {
		return err
	}
	printPlan(plan)
	return nil
}

func runDeleteMeal(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("delete-meal", flag.ExitOnError)
	user := fs.String("user", "", "User id")
	week := fs.String("week", "", "Week start (YYYY-MM-DD)")
	dayName := fs.String("day", "", "Day to edit, e.g. monday")
	mealName := fs.String("meal", "", "lunch or dinner")
	fs.Parse(args)
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	w, err := planner.ParseWeek(*week)
	if err != nil {
		return err
	}
	day, ok := planner.ParseDay(strings.ToLower(*dayName))
	if !ok {
		return fmt.Errorf("unknown day %q", *dayName)
	}
	meal, ok := planner.ParseMealType(strings.ToLower(*mealName))
	if !ok {
		return fmt.Errorf("meal must be lunch or dinner, got %q", *mealName)
	}

	plan, err := a.DeleteMeal(ctx, *user, w, day, meal)
	if err != nil {
		return err
	}
	printPlan(plan)
	return nil
}

func runExport(a *app.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	user := fs.String("user", "", "User id")
	week := fs.String("week", "", "Week start (YYYY-MM-DD)")
	out := fs.String("out", "", "Write to this file instead of stdout")
	fs.Parse(args)
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	w, err := planner.ParseWeek(*week)
	if err != nil {
		return err
	}
	archived, err := a.Export(*user, w)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(archived, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if *out == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	fmt.Printf("Plan exported to %s\n", *out)
	return nil
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	user := fs.String("user", "", "User id")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	fs.Parse(args)
	if err := requireUser(fs, *user); err != nil {
		return err
	}
	if cfg.APIJWTSecret == "" {
		return fmt.Errorf("API_JWT_SECRET environment variable not set")
	}

	token, err := api.NewTokenIssuer(cfg.APIJWTSecret, *ttl).Issue(*user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runProfile(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	user := fs.String("user", "", "User id")
	username := fs.String("username", "", "Display name used in emails")
	email := fs.String("email", "", "Email address")
	region := fs.String("region", "", "Region for seasonal produce")
	disliked := fs.String("disliked", "", "Comma separated foods to avoid")
	provider := fs.String("provider", "", "AI provider: gemini, openai, claude or groq")
	key := fs.String("key", "", "API key for the provider")
	trains := fs.Bool("trains", false, "Whether the user trains")
	frequency := fs.Int("training-frequency", 0, "Training sessions per week")
	days := fs.String("training-days", "", "Training days")
	dietFile := fs.String("diet-file", "", "Diet to import: a text or HTML file, or a link")
	fs.Parse(args)
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	p, err := a.Profile(ctx, *user, *username)
	if err != nil {
		return err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "username":
			p.Username = *username
		case "email":
			p.Email = strings.TrimSpace(*email)
		case "region":
			p.Region = strings.TrimSpace(*region)
		case "disliked":
			p.SetDisliked(planner.ParseDisliked(*disliked))
		case "provider":
			id, ok := llm.ParseProviderID(*provider)
			if !ok {
				flagErr = fmt.Errorf("unsupported provider %q", *provider)
				return
			}
			p.APIProvider = string(id)
		case "key":
			p.APIKey = strings.TrimSpace(*key)
		case "trains":
			p.Trains = *trains
		case "training-frequency":
			p.TrainingFrequency = *frequency
		case "training-days":
			p.TrainingDays = strings.TrimSpace(*days)
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err := a.SaveProfile(ctx, p); err != nil {
		return err
	}

	if *dietFile != "" {
		input := *dietFile
		if !diet.IsURL(input) {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read diet file: %w", err)
			}
			input = string(data)
		}
		d, err := a.ImportDiet(ctx, *user, input)
		if err != nil {
			return err
		}
		fmt.Printf("Diet imported from %s (%d characters)\n", d.Source, len([]rune(d.Content)))
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printPlan(p *planner.StoredPlan) {
	fmt.Printf("Plan for the week starting %s", p.WeekStart)
	if p.Provider != "" {
		fmt.Printf(" (%s %s)", p.Provider, p.Model)
	}
	fmt.Println()
	fmt.Println(p.Content)
	fmt.Println("\nShopping List:")
	fmt.Println(p.ShoppingList)
}
