package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"quicktodo-api/api"
	"quicktodo-api/storage"
)

func main() {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
	}

	logBufferSize := api.DefaultLogBufferSize
	if v := os.Getenv("LOG_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Fatalf("invalid LOG_BUFFER_SIZE: %q", v)
		}
		logBufferSize = n
	}
	logs := api.NewLogBuffer(logBufferSize)
	logger.AddHook(logs)

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	roomsTableName := os.Getenv("ROOMS_TABLE")
	if connStr == "" || roomsTableName == "" {
		logger.Fatal("missing storage config")
	}
	store, err := storage.NewTableStore(connStr, roomsTableName)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	rooms := storage.NewRooms(store, logger)

	var svc api.RoomStore = rooms
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		rc := redis.NewClient(redisOpts)

		ttl := 30 * time.Second
		if v := os.Getenv("ROOM_CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				logger.Fatalf("invalid ROOM_CACHE_TTL: %v", err)
			}
			ttl = d
		}
		svc = storage.NewCache(rooms, rc, ttl)
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(echoprometheus.NewMiddleware("quicktodo"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, svc, logs, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
