package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/psicopedagogiando/tienda/internal/flagx"
)

// parseEnv loads the dotenv file named by -env (".env" by default) into the
// process environment and then overlays every variable named in the Config
// struct tags. A missing dotenv file is not an error, since production
// deployments usually set variables directly.
func parseEnv(config *Config, args []string) {
	if err := godotenv.Load(flagx.EnvFilePath(args)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
