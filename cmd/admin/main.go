package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"grievance/backend/internal/config"
	"grievance/backend/internal/grievance"
	"grievance/backend/internal/llm"
	"grievance/backend/internal/localization"
	"grievance/backend/internal/models"
	"grievance/backend/internal/notify"
	"grievance/backend/internal/storage"
	"grievance/backend/internal/triage"
	"grievance/backend/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operator tools for the grievance backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert missing departments from the catalog",
	RunE:  runSeed,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a department admin",
	RunE:  runCreateAdmin,
}

var setStatusCmd = &cobra.Command{
	Use:   "set-status <grievance_id> <status>",
	Short: "Move a grievance to another stage and notify the citizen",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetStatus,
}

var verifyClosureCmd = &cobra.Command{
	Use:   "verify-closure <grievance_id> <note>",
	Short: "Verify a resolution note and close the grievance if it is specific enough",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerifyClosure,
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List status stages and departments",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Stages:")
		for i, s := range models.StatusStages {
			fmt.Fprintf(out, "  %d. %s\n", i+1, s)
		}
		fmt.Fprintln(out, "Departments:")
		for _, d := range models.DepartmentCatalog {
			fmt.Fprintf(out, "  - %s\n", d.Name)
		}
		return nil
	},
}

var (
	adminName       string
	adminEmail      string
	adminPhone      string
	adminPassword   string
	adminDepartment string
	statusNote      string
	actorAdminID    uint
)

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "admin name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminPhone, "phone", "", "admin phone")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	createAdminCmd.Flags().StringVar(&adminDepartment, "department", "", "department name (see 'stages')")
	for _, f := range []string{"name", "email", "password", "department"} {
		_ = createAdminCmd.MarkFlagRequired(f)
	}

	setStatusCmd.Flags().StringVar(&statusNote, "note", "", "note shown to the citizen")
	setStatusCmd.Flags().UintVar(&actorAdminID, "admin-id", 0, "acting admin id (0 = system)")
	verifyClosureCmd.Flags().UintVar(&actorAdminID, "admin-id", 0, "acting admin id (0 = system)")

	rootCmd.AddCommand(migrateCmd, seedCmd, createAdminCmd, setStatusCmd, verifyClosureCmd, stagesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is what every database command needs.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *gorm.DB
	store *storage.Service
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env, "warn")
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	store := storage.NewStorageService(db)
	store.HashCost = config.BcryptCost
	return &env{cfg: cfg, log: log, db: db, store: store}, nil
}

// service builds the orchestrator with the configured LLM and WhatsApp, without live feed.
func (e *env) service(ctx context.Context) (*grievance.Service, error) {
	var completer llm.Completer
	if e.cfg.LLM.APIKey != "" {
		c, err := llm.NewGenAIClient(ctx, e.cfg.LLM.APIKey, e.cfg.LLM.Model, e.cfg.LLM.VisionModel)
		if err != nil {
			return nil, err
		}
		completer = c
	}
	loc, err := localization.NewLocalizer()
	if err != nil {
		return nil, err
	}

	var whatsapp notify.WhatsAppSender
	if e.cfg.Twilio.Enabled() {
		whatsapp = notify.NewTwilioSender(e.cfg.Twilio, e.cfg.OutboundTimeout)
	}

	return grievance.NewService(grievance.Deps{
		Storage: e.store,
		Triage:  triage.NewClient(completer, e.log, e.cfg.LLM.Timeout),
		Notifier: notify.NewDispatcher(notify.Options{
			WhatsApp: whatsapp,
			Phones:   e.store,
			Localize: loc,
			Language: e.cfg.DefaultLanguage,
			Timeout:  e.cfg.OutboundTimeout,
			Logger:   e.log,
		}),
		Localizer: loc,
		Language:  e.cfg.DefaultLanguage,
		Policy:    e.cfg.TransitionPolicy,
		Logger:    e.log,
	}), nil
}

func actor() *uint {
	if actorAdminID == 0 {
		return nil
	}
	id := actorAdminID
	return &id
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := storage.Migrate(cmd.Context(), e.db, e.log); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := storage.SeedDepartments(cmd.Context(), e.db); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d departments present.\n", len(models.DepartmentCatalog))
	return nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	if !models.IsDepartment(adminDepartment) {
		return fmt.Errorf("unknown department %q", adminDepartment)
	}
	if len(adminPassword) < config.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", config.MinPasswordLength)
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	admin := &models.Admin{Name: adminName, Email: adminEmail, Phone: adminPhone, Department: adminDepartment}
	if err := e.store.CreateAdmin(cmd.Context(), admin, adminPassword); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Admin %d (%s) created for %s.\n", admin.ID, admin.Email, admin.Department)
	return nil
}

func runSetStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	svc, err := e.service(cmd.Context())
	if err != nil {
		return err
	}

	res, err := svc.UpdateStatus(cmd.Context(), grievance.StatusChange{
		GrievanceID: strings.ToUpper(args[0]),
		Status:      args[1],
		Note:        statusNote,
		AdminID:     actor(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", res.Grievance.GrievanceID, res.Message())
	if res.Notification.Sent {
		fmt.Fprintf(out, "Citizen notified via %s.\n", res.Notification.Channel)
	} else if res.Notification.Error != "" {
		fmt.Fprintf(out, "Notification not sent: %s\n", res.Notification.Error)
	}
	return nil
}

func runVerifyClosure(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	svc, err := e.service(cmd.Context())
	if err != nil {
		return err
	}

	res, err := svc.CloseWithVerification(cmd.Context(), grievance.ClosureRequest{
		GrievanceID: strings.ToUpper(args[0]),
		Note:        args[1],
		AdminID:     actor(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verdict := "REJECTED"
	if res.Verdict.Approved {
		verdict = "APPROVED"
	}
	fmt.Fprintf(out, "%s (%s): %s\n", verdict, res.Verdict.Source, res.Verdict.Reason)
	fmt.Fprintf(out, "Status: %s → %s\n", res.Transition.OldStatus, res.Transition.NewStatus)
	return nil
}
