// seed inserts the social challenge question catalog for local development.
// Idempotent: skips inserts when the catalog already has rows.
package main

import (
	"context"
	"log"
	"os"

	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
	challengerepo "merchant-trust-platform/backend/internal/challenge/repository"
	"merchant-trust-platform/backend/internal/config"
	"merchant-trust-platform/backend/internal/db"
)

// catalog is the starter question set. Questions are phrased for voice
// playback in French and Dioula; merchants pick the ones they can answer.
var catalog = []challengedomain.Challenge{
	{
		QuestionFr:     "Quel est le prénom de votre première fille ou premier fils?",
		QuestionDioula: "I den fɔlɔ tɔgɔ ye mun ye?",
		Category:       challengedomain.CategoryFamily,
		Difficulty:     1,
		IsActive:       true,
	},
	{
		QuestionFr:     "Quel est le prénom de votre mère?",
		QuestionDioula: "I ba tɔgɔ ye mun ye?",
		Category:       challengedomain.CategoryFamily,
		Difficulty:     1,
		IsActive:       true,
	},
	{
		QuestionFr:     "Dans quel village êtes-vous né?",
		QuestionDioula: "I wolola dugu jumɛn na?",
		Category:       challengedomain.CategoryLocation,
		Difficulty:     1,
		IsActive:       true,
	},
	{
		QuestionFr:     "Dans quel quartier se trouve votre boutique?",
		QuestionDioula: "I ka butiki bɛ sigida jumɛn na?",
		Category:       challengedomain.CategoryLocation,
		Difficulty:     2,
		IsActive:       true,
	},
	{
		QuestionFr:     "Quel produit vendez-vous le plus?",
		QuestionDioula: "I bɛ fɛn jumɛn feere ka ca?",
		Category:       challengedomain.CategoryBusiness,
		Difficulty:     1,
		IsActive:       true,
	},
	{
		QuestionFr:     "En quelle année avez-vous ouvert votre commerce?",
		QuestionDioula: "I ye i ka jago daminɛ san jumɛn?",
		Category:       challengedomain.CategoryBusiness,
		Difficulty:     2,
		IsActive:       true,
	},
	{
		QuestionFr:     "Quel est le jour du grand marché dans votre ville?",
		QuestionDioula: "Sugu belebele bɛ don jumɛn na i ka dugu kɔnɔ?",
		Category:       challengedomain.CategoryCommunity,
		Difficulty:     1,
		IsActive:       true,
	},
	{
		QuestionFr:     "Quel est le nom de votre association de commerçants?",
		QuestionDioula: "Aw ka jagokɛlaw ka tɔn tɔgɔ ye mun ye?",
		Category:       challengedomain.CategoryCommunity,
		Difficulty:     3,
		IsActive:       true,
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var existing int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM social_challenges`).Scan(&existing); err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing > 0 {
		log.Printf("Seed already applied (%d catalog questions exist). Skipping.", existing)
		os.Exit(0)
	}

	repo := challengerepo.NewPostgresRepository(conn)
	for i := range catalog {
		if _, err := repo.CreateChallenge(ctx, &catalog[i]); err != nil {
			log.Fatalf("create challenge %q: %v", catalog[i].QuestionFr, err)
		}
	}
	log.Printf("Seed completed: %d catalog questions inserted.", len(catalog))
}
