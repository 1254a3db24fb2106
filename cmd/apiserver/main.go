package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"chat-go/internal/config"
	"chat-go/internal/handlers/apiserver"
	appKafka "chat-go/internal/kafka"
	"chat-go/internal/middleware"
	appRedis "chat-go/internal/redis"
	"chat-go/internal/services"
	"chat-go/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("%s %s starting", cfg.AppName, cfg.AppVersion)

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("Failed to migrate database tables: %v", err)
	}
	log.Println("Database connected and migrated.")

	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis.")

	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)
	presenceCache := appRedis.NewRedisPresenceCache(redisClient)

	userRepo := storage.NewGormUserRepository(db)
	chatRepo := storage.NewGormChatRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	friendReqRepo := storage.NewGormFriendRequestRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)

	attachStore, err := storage.NewLocalAttachmentStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}
	log.Printf("Attachment storage initialized at %s.", cfg.Storage.LocalPath)

	// Event publishing is optional: no brokers configured means no producer.
	var producer appKafka.MessageProducer = appKafka.NoopProducer{}
	if len(cfg.Kafka.Brokers) > 0 {
		kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
		if err != nil {
			log.Fatalf("Failed to create Kafka producer: %v", err)
		}
		defer kfkProducer.Close()
		producer = kfkProducer
		log.Println("Kafka notification producer initialized.")
	}
	notifier := services.NewNotifier(producer, cfg.Kafka)

	authService := services.NewAuthService(userRepo, tokenBlacklist, cfg.Auth)
	userService := services.NewUserService(userRepo, attachStore, presenceCache)
	chatService := services.NewChatService(db, chatRepo, userRepo, msgRepo, attachStore, notifier)
	messageService := services.NewMessageService(db, msgRepo, chatRepo, attachStore, notifier)
	friendService := services.NewFriendService(db, userRepo, friendReqRepo, friendshipRepo, chatRepo, notifier)

	authHandler := apiserver.NewAuthHandler(authService, userService, cfg.Auth)
	userHandler := apiserver.NewUserHandler(userService)
	chatHandler := apiserver.NewChatHandler(chatService)
	messageHandler := apiserver.NewMessageHandler(messageService)
	friendHandler := apiserver.NewFriendHandler(friendService)

	r := mux.NewRouter()

	// Public auth routes
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/signup", authHandler.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	// Authenticated API routes
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, cfg.Auth, tokenBlacklist, presenceCache)
	})

	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/check", authHandler.Check).Methods(http.MethodGet)

	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMe).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/me", userHandler.DeleteMe).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/users/search", userHandler.Search).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{userID:[0-9]+}", userHandler.GetUser).Methods(http.MethodGet)

	apiRouter.HandleFunc("/chats", chatHandler.GetChats).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats", chatHandler.CreateChat).Methods(http.MethodPost)
	apiRouter.HandleFunc("/chats/{chatID:[0-9]+}", chatHandler.GetChat).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/{chatID:[0-9]+}", chatHandler.UpdateChat).Methods(http.MethodPut)
	apiRouter.HandleFunc("/chats/{chatID:[0-9]+}", chatHandler.DeleteChat).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/chats/{chatID:[0-9]+}/leave", chatHandler.LeaveChat).Methods(http.MethodPut)

	apiRouter.HandleFunc("/chats/{chatID:[0-9]+}/messages", messageHandler.GetMessages).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/{chatID:[0-9]+}/messages", messageHandler.SendMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/{messageID:[0-9]+}", messageHandler.DeleteMessage).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/messages/{messageID:[0-9]+}/react", messageHandler.ReactToMessage).Methods(http.MethodPatch)

	apiRouter.HandleFunc("/friends", friendHandler.GetFriends).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/pending", friendHandler.GetPendingRequests).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/requests", friendHandler.AddFriend).Methods(http.MethodPost)
	apiRouter.HandleFunc("/friends/requests/{requestID:[0-9]+}/accept", friendHandler.AcceptRequest).Methods(http.MethodPost)
	apiRouter.HandleFunc("/friends/requests/{requestID:[0-9]+}/decline", friendHandler.DeclineRequest).Methods(http.MethodPost)
	apiRouter.HandleFunc("/friends/{friendID:[0-9]+}", friendHandler.RemoveFriend).Methods(http.MethodDelete)

	// Static serving for locally stored attachments
	if cfg.Storage.Type == "local" {
		staticPath := strings.TrimSuffix(cfg.Storage.BaseURL, "/") + "/"
		r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(http.Dir(cfg.Storage.LocalPath))))
		log.Printf("Serving attachments at %s -> %s", staticPath, cfg.Storage.LocalPath)
	}

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        corsHandler,
		ReadTimeout:    cfg.APIServer.ReadTimeout,
		WriteTimeout:   cfg.APIServer.WriteTimeout,
		MaxHeaderBytes: cfg.APIServer.MaxHeaderBytes,
		IdleTimeout:    time.Second * 60,
	}

	go func() {
		log.Printf("API server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping API server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API server forced to shut down: %v", err)
	}
	log.Println("API server stopped.")
}
