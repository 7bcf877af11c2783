package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"Marketplace/config"
	"Marketplace/jwt"
	"Marketplace/routers"
	"Marketplace/seed"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	createSuperuser := flag.Bool("create-superuser", false, "create the default admin user and exit")
	populate := flag.Bool("seed", false, "populate the database with demo data and exit")
	clearFirst := flag.Bool("seed-clear", false, "with -seed, remove all non-admin data first")
	flag.Parse()

	bootstrap := logrus.New()
	bootstrap.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootstrap.WithError(err).Fatal("Unable to load config")
	}

	log := config.NewLogger(cfg.Log)

	db, err := config.SetupMySQLConnection(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Unable to connect to database")
	}
	defer func() {
		dbInstance, _ := db.DB()
		_ = dbInstance.Close()
	}()

	ctx := context.Background()

	//管理指令執行完即結束
	if *createSuperuser || *populate {
		if *createSuperuser {
			if _, err := seed.CreateSuperuser(ctx, db, log); err != nil {
				log.WithError(err).Fatal("Unable to create superuser")
			}
		}
		if *populate {
			if *clearFirst {
				if err := seed.Clear(ctx, db); err != nil {
					log.WithError(err).Fatal("Unable to clear data")
				}
				log.Info("Existing data cleared")
			}
			if err := seed.Populate(ctx, db, log); err != nil {
				log.WithError(err).Fatal("Unable to populate demo data")
			}
		}
		return
	}

	rdb := config.SetupRedisConnection(cfg.Redis)
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, product list will be served from the database")
	}
	cancel()

	tokens, err := jwt.LoadManager(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath, cfg.JWT.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("Unable to load JWT keys")
	}

	router, err := routers.SetupRouters(db, rdb, tokens, log)
	if err != nil {
		log.WithError(err).Fatal("Unable to set up routers")
	}

	log.WithField("addr", cfg.Server.Addr).Info("Server starting")
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
