package main

import (
	"time"

	"company-directory-backend/internal/config"
	"company-directory-backend/internal/logging"
	"company-directory-backend/internal/repository"
	"company-directory-backend/internal/routes"
	"company-directory-backend/internal/services/companyimport"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env
	n, envErr := config.LoadEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.WithError(envErr).Warn("could not load .env file")
	} else if n == 0 {
		log.Info("No .env file found, relying on system env")
	}

	deps := routes.Dependencies{
		Options:        importOptions(cfg.Import),
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Log:            log,
	}

	switch cfg.Database.Driver {
	case "memory":
		companies := repository.NewMemoryCompanyRepository()
		runs := repository.NewMemoryCompanyImportRepository()
		deps.Store, deps.Companies = companies, companies
		deps.Runs, deps.Imports = runs, runs
		log.Warn("using in-memory store, imported companies are lost on exit")
	default:
		db, err := config.InitDB(cfg.Database)
		if err != nil {
			log.WithError(err).Fatal("database unavailable")
		}
		companies := repository.NewCompanyRepository(db)
		runs := repository.NewCompanyImportRepository(db)
		deps.Store, deps.Companies = companies, companies
		deps.Runs, deps.Imports = runs, runs
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log))
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, deps)

	log.WithField("port", cfg.HTTP.Port).Info("company directory backend listening")
	if err := r.Run(":" + cfg.HTTP.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func importOptions(o config.ImportOptions) companyimport.Options {
	return companyimport.Options{
		BatchSize:         o.BatchSize,
		MaxRows:           o.MaxRows,
		ErrorPreviewLimit: o.ErrorPreviewLimit,
		RowPreviewLimit:   o.RowPreviewLimit,
		CommitRetries:     o.CommitRetries,
		KeyLookupChunk:    o.KeyLookupChunk,
	}
}
