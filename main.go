package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wordclash/server/internal/engine"
	"github.com/wordclash/server/internal/httpserver"
	"github.com/wordclash/server/internal/ranked"
	"github.com/wordclash/server/internal/similarity"
	"github.com/wordclash/server/internal/store"
	"github.com/wordclash/server/internal/themes"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(envStr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := themes.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load themes")
	}

	db, err := openDB(envStr("DB_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	mem := store.NewMemoryStore(envDuration("SESSION_TTL", 2*time.Hour))
	go func() {
		for range time.Tick(10 * time.Minute) {
			if n := mem.Sweep(); n > 0 {
				log.Info().Int("sessions", n).Msg("swept expired sessions")
			}
		}
	}()

	cfg := engine.DefaultConfig()
	cfg.MinPlayers = envInt("MIN_PLAYERS", cfg.MinPlayers)
	cfg.MaxPlayers = envInt("MAX_PLAYERS", cfg.MaxPlayers)
	cfg.PoolSize = envInt("POOL_SIZE", cfg.PoolSize)
	cfg.Threshold = envFloat("ELIMINATION_THRESHOLD", cfg.Threshold)

	machine := engine.NewMachine(mem, newGateway(), cfg)
	ladder := ranked.NewStore(db, ranked.DefaultConfig())

	srv := httpserver.New(machine, ladder, db)
	port := envStr("PORT", "5175")
	log.Info().Str("port", port).Msg("starting server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// newGateway picks the similarity provider: embeddings when an API key
// is configured, otherwise the exact-match variant.
func newGateway() similarity.Gateway {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && envStr("SIMILARITY_MODE", "embedding") != "exact" {
		opts := []similarity.Option{}
		if u := os.Getenv("EMBEDDINGS_BASE_URL"); u != "" {
			opts = append(opts, similarity.WithBaseURL(u))
		}
		if m := os.Getenv("EMBEDDINGS_MODEL"); m != "" {
			opts = append(opts, similarity.WithModel(m))
		}
		log.Info().Msg("similarity: embedding gateway")
		return similarity.NewEmbeddingClient(key, opts...)
	}
	log.Info().Msg("similarity: exact-match gateway")
	return similarity.ExactMatcher{}
}

func envStr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
