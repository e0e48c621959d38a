package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var luaFS embed.FS

// LoadAll loads/replaces every embedded Lua function library in Redis,
// in name order so repeated boots behave identically.
func LoadAll(ctx context.Context, rdb *redis.Client) error {
	entries, err := luaFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		code, err := luaFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := rdb.FunctionLoadReplace(ctx, string(code)).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", name, err)
		}
		zap.L().Info("lua function library loaded", zap.String("file", name))
	}
	return nil
}
