package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatline/chatline-server/internal/auth"
	"github.com/chatline/chatline-server/internal/config"
	"github.com/chatline/chatline-server/internal/core"
	"github.com/chatline/chatline-server/internal/mail"
	"github.com/chatline/chatline-server/internal/payment"
	"github.com/chatline/chatline-server/internal/store"
)

// NewServer builds the HTTP server with REST routes and the ws endpoint.
func NewServer(
	hub *core.Hub,
	authService *auth.Service,
	st store.Store,
	paymentService *payment.Service,
	mailer mail.Mailer,
	cfg config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	authHandlers := NewAuthHandlers(authService, st, logger)
	userHandlers := NewUserHandlers(st, authService, logger)
	messageHandlers := NewMessageHandlers(st, logger)
	paymentHandlers := NewPaymentHandlers(paymentService, st, logger)
	adminHandlers := NewAdminHandlers(st, mailer, logger)
	requireAuth := AuthMiddleware(authService, logger)

	r.GET("/health", healthHandler)
	r.GET("/ws", gin.WrapH(NewWSHandler(hub, logger)))

	api := r.Group("/api")
	{
		api.POST("/register", userHandlers.Register)
		api.GET("/users", userHandlers.List)
		api.GET("/messages", messageHandlers.Conversation)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.Register)
			authGroup.POST("/login", authHandlers.Login)
			authGroup.GET("/user", requireAuth, authHandlers.CurrentUser)
		}

		messages := api.Group("/messages", requireAuth)
		{
			messages.GET("/:userId", messageHandlers.ConversationWith)
			messages.PUT("/read/:userId", messageHandlers.MarkConversationRead)
		}
		api.PUT("/message/:messageId/read", requireAuth, messageHandlers.MarkMessageRead)

		payments := api.Group("/payments")
		{
			payments.POST("", paymentHandlers.Initiate)
			payments.POST("/transaction", paymentHandlers.SubmitTransaction)
			payments.GET("/:id", paymentHandlers.Get)
		}

		admin := api.Group("/admin", requireAuth)
		{
			admin.GET("/transactions", adminHandlers.ListTransactions)
			admin.GET("/transactions/:id", adminHandlers.GetTransaction)
			admin.PUT("/transactions", adminHandlers.UpdateTransaction)
			admin.POST("/upi", adminHandlers.SetUpi)
			admin.GET("/upi", adminHandlers.GetUpi)
		}
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
