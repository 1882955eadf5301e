package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Port            int
	DataPath        string
	DBPath          string
	EpisodesDir     string
	BackgroundImage string
	CORSOrigins     []string
	JobWorkers      int
	TranscribeURL   string
	TranscribeKey   string
	SegmenterURL    string
}

func Load() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))
	dataPath := getEnv("DATA_PATH", "/data")

	workers, _ := strconv.Atoi(getEnv("JOB_WORKERS", "2"))
	if workers < 1 {
		workers = 1
	}

	return &Config{
		Port:            port,
		DataPath:        dataPath,
		DBPath:          getEnv("DB_PATH", filepath.Join(dataPath, "podcast.db")),
		EpisodesDir:     getEnv("EPISODES_DIR", filepath.Join(dataPath, "episodes")),
		BackgroundImage: getEnv("BACKGROUND_IMAGE", filepath.Join(dataPath, "background.jpg")),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
		JobWorkers:      workers,
		TranscribeURL:   getEnv("TRANSCRIBE_API_URL", "https://api.assemblyai.com"),
		TranscribeKey:   os.Getenv("TRANSCRIBE_API_KEY"),
		SegmenterURL:    getEnv("SEGMENTER_URL", "http://localhost:9090"),
	}
}

// splitList parses a comma-separated env value. Empty input means "*".
func splitList(v string) []string {
	if v == "" {
		return []string{"*"}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
