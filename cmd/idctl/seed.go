package main

import (
	"context"
	"io"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/rxcheck-identity/config"
	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/bootstrap"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/repository"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

type seedConfig struct {
	email         string
	password      string
	name          string
	firstSurname  string
	secondSurname string
	curp          string
	timeout       time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first administrator",
		Long: `Create an administrator in the configured user store. Admins cannot
register through the API, so the first one is created here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.Load()
			logger := helpers.NewLogger(conf.AppName+"-idctl", conf.Env, helpers.WithLevel(conf.LogLevel), helpers.WithOutput(cmd.ErrOrStderr()))
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
			defer cancel()

			repo, closeStore, err := bootstrap.OpenUserStore(ctx, conf, logger)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("store", conf.UserStore).Wrap(err)
			}
			defer closeStore()
			return runSeed(ctx, cmd, repo, conf.BcryptCost, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.email, "email", "", "admin email")
	cmd.Flags().StringVar(&cfg.password, "password", "", "admin password")
	cmd.Flags().StringVar(&cfg.name, "name", "", "given name")
	cmd.Flags().StringVar(&cfg.firstSurname, "first-surname", "", "first surname")
	cmd.Flags().StringVar(&cfg.secondSurname, "second-surname", "", "second surname")
	cmd.Flags().StringVar(&cfg.curp, "curp", "", "CURP of the administrator")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 30*time.Second, "overall timeout")
	for _, f := range []string{"email", "password", "name", "curp"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func runSeed(ctx context.Context, cmd *cobra.Command, repo repository.UserRepository, cost int, cfg *seedConfig) error {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	creds := application.NewCredentialManager(helpers.NewBcryptHasher(cost))
	svc := application.NewUserService(repo, creds, nil, nil, nil, quiet)
	u, err := svc.Create(ctx, application.CreateUserInput{
		Name:          cfg.name,
		FirstSurname:  cfg.firstSurname,
		SecondSurname: cfg.secondSurname,
		Identifier:    cfg.curp,
		Email:         cfg.email,
		Password:      cfg.password,
		Role:          entity.RoleAdmin,
	})
	if err != nil {
		return oops.Code("SEED_FAILED").With("email", cfg.email).Wrap(err)
	}
	cmd.Printf("seeded admin: id=%s identifier=%s email=%s\n", u.ID, u.Identifier, u.Email)
	return nil
}
