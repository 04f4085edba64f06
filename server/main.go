package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/quickgpt/quickgpt-server/ai"
	"github.com/quickgpt/quickgpt-server/database"
	"github.com/quickgpt/quickgpt-server/handlers"
	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/routes"
	"github.com/quickgpt/quickgpt-server/storage"
	"github.com/quickgpt/quickgpt-server/utils"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("WARNING: Could not load .env file, relying on system environment variables")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database connection: %v", closeErr)
		}
	}()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	geminiClient, err := ai.NewGeminiClient(context.Background(), geminiKey, os.Getenv("GEMINI_MODEL"))
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}
	defer geminiClient.Close()

	clipdropKey := os.Getenv("CLIPDROP_API_KEY")
	if clipdropKey == "" {
		log.Fatal("CLIPDROP_API_KEY is required")
	}
	clipdropClient := ai.NewClipDropClient(clipdropKey)

	region := os.Getenv("AWS_REGION")
	bucket := os.Getenv("AWS_BUCKET_NAME")
	cloudfront := os.Getenv("AWS_CLOUDFRONT_DOMAIN")
	accessKey := os.Getenv("AWS_S3_BUCKET_ACCESS_KEY")
	secretKey := os.Getenv("AWS_S3_BUCKET_SECRET_ACCESS_KEY")

	if region == "" || bucket == "" || cloudfront == "" || accessKey == "" || secretKey == "" {
		log.Fatal("AWS region, bucket, CloudFront domain and credentials are required")
	}

	sess := session.Must(session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	}))

	imageStore := &storage.S3Storage{
		Uploader:         s3manager.NewUploader(sess),
		Bucket:           bucket,
		CloudFrontDomain: cloudfront,
		Folder:           "quickgpt",
	}

	store := &database.Store{DB: db}

	userHandler := &handlers.UserHandler{
		DB:          db,
		RedisClient: redisClient,
	}
	chatHandler := &handlers.ChatHandler{DB: db}
	communityHandler := &handlers.CommunityHandler{DB: db}
	messageHandler := &handlers.MessageHandler{
		Data:  store,
		Text:  geminiClient,
		Image: clipdropClient,
		Store: imageStore,
	}
	stripeHandler := &handlers.StripeHandler{DB: db, Settlements: store}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", stripeHandler.HandleWebhook)
	routes.RegisterUserRoutes(mux, userHandler, redisClient)
	routes.RegisterChatRoutes(mux, chatHandler, communityHandler, redisClient)
	routes.RegisterMessageRoutes(mux, messageHandler, redisClient)
	routes.RegisterCreditRoutes(mux, stripeHandler, redisClient)
	routes.RegisterCommunityRoutes(mux, communityHandler, redisClient)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "This route does not exist")
	})

	handler := middleware.CORS(
		middleware.SetCommonHeaders(
			middleware.GlobalRateLimiter(redisClient)(mux),
		),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("server is running on http://localhost:%s\n", port)

	log.Fatal(http.ListenAndServe(":"+port, handler))
}
