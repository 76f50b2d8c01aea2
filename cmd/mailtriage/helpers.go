package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sortdesk/mailtriage/internal/classifier"
	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/config"
	"github.com/sortdesk/mailtriage/internal/engine"
	"github.com/sortdesk/mailtriage/internal/mailbox"
	"github.com/sortdesk/mailtriage/internal/model"
	"github.com/sortdesk/mailtriage/internal/service"
	"github.com/sortdesk/mailtriage/internal/storage"
)

// initLedger opens the sqlite ledger and runs migrations.
func initLedger(ctx context.Context) (service.Ledger, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	ledger, err := storage.NewSQLiteLedger(dbPath)
	if err != nil {
		return nil, err
	}

	if err := ledger.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return ledger, nil
}

// initClassifier creates the classifier store and loads persisted artifacts.
func initClassifier() (*classifier.Store, error) {
	store := classifier.NewStore(
		config.ExpandPath(viper.GetString("classifier.model_path")),
		config.ExpandPath(viper.GetString("classifier.vectorizer_path")),
	)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load classifier artifacts: %w", err)
	}
	return store, nil
}

func folderMap() model.FolderMap {
	return model.FolderMap{
		High:   viper.GetString("folders.high"),
		Medium: viper.GetString("folders.medium"),
		Low:    viper.GetString("folders.low"),
	}
}

// initMailbox creates the IMAP session from configuration.
func initMailbox() (service.Mailbox, error) {
	host := viper.GetString("imap.host")
	username := viper.GetString("imap.username")
	password := viper.GetString("imap.password")
	if host == "" || username == "" || password == "" {
		return nil, fmt.Errorf("%w: imap.host, imap.username and imap.password are required",
			common.ErrMissingConfig)
	}

	return mailbox.NewSession(mailbox.Options{
		Host:               host,
		Port:               viper.GetInt("imap.port"),
		Username:           username,
		Password:           password,
		Inbox:              viper.GetString("imap.inbox"),
		Timeout:            viper.GetDuration("imap.timeout"),
		UseTLS:             viper.GetBool("imap.tls"),
		InsecureSkipVerify: viper.GetBool("imap.insecure_skip_verify"),
	}, folderMap()), nil
}

// initEngine wires the full triage engine. The returned cleanup closes the
// ledger and the mailbox session.
func initEngine(ctx context.Context) (*engine.TriageEngine, func(), error) {
	ledger, err := initLedger(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := initClassifier()
	if err != nil {
		_ = ledger.Close()
		return nil, nil, err
	}

	mb, err := initMailbox()
	if err != nil {
		_ = ledger.Close()
		return nil, nil, err
	}

	eng := engine.NewWithConfig(ledger, mb, store, folderMap(), engine.Config{
		Inbox: viper.GetString("imap.inbox"),
	})

	cleanup := func() {
		_ = mb.Close()
		_ = ledger.Close()
	}
	return eng, cleanup, nil
}

func parseStartDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date %q, want YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
