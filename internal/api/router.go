package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/stocktaker/internal/blob"
	"github.com/erazemk/stocktaker/internal/conversion"
	"github.com/erazemk/stocktaker/internal/export"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
)

// Deps are the router's collaborators. A nil Blobs keeps images in the
// database; a nil Exporter disables stock take export.
type Deps struct {
	Store       *store.Store
	Blobs       blob.Store
	Exporter    export.Exporter
	JWTSecret   string
	TokenExpiry time.Duration
	Logger      *slog.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Blobs == nil {
		d.Blobs = blob.NewDBStore(d.Store)
	}
	if d.Exporter == nil {
		d.Exporter = export.Nop{}
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{Store: d.Store, JWTSecret: d.JWTSecret, TokenExpiry: d.TokenExpiry}
	usersHandler := &UsersHandler{Store: d.Store}
	productsHandler := &ProductsHandler{Store: d.Store, Blobs: d.Blobs}
	conversionsHandler := &ConversionsHandler{Service: conversion.NewService(d.Store, d.Logger)}
	stockTakesHandler := &StockTakesHandler{Store: d.Store, Exporter: d.Exporter}
	deliveriesHandler := &DeliveriesHandler{Store: d.Store, Blobs: d.Blobs}

	authMW := AuthMiddleware(d.JWTSecret, d.Store)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)
	approved := func(h http.HandlerFunc) http.Handler { return authMW(RequireApproved(h)) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(RequireApproved(requireManager(h))) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/signup", authHandler.Signup)

	// Authenticated, approval not required.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("PUT /api/users/{id}/approve", authMW(requireAdmin(http.HandlerFunc(usersHandler.Approve))))
	mux.Handle("PUT /api/users/{id}/role", authMW(requireAdmin(http.HandlerFunc(usersHandler.SetRole))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Products: read (approved), write (manager+).
	mux.Handle("GET /api/products", approved(productsHandler.List))
	mux.Handle("GET /api/products/{id}", approved(productsHandler.Get))
	mux.Handle("GET /api/products/{id}/image", approved(productsHandler.GetImage))
	mux.Handle("POST /api/products", manager(productsHandler.Create))
	mux.Handle("PUT /api/products/{id}", manager(productsHandler.Update))
	mux.Handle("DELETE /api/products/{id}", manager(productsHandler.Delete))
	mux.Handle("PUT /api/products/{id}/image", manager(productsHandler.UploadImage))

	// Conversions.
	mux.Handle("GET /api/conversions/active", approved(conversionsHandler.Active))
	mux.Handle("GET /api/conversions/{id}", approved(conversionsHandler.Get))
	mux.Handle("POST /api/conversions", approved(conversionsHandler.Start))
	mux.Handle("POST /api/conversions/{id}/complete", approved(conversionsHandler.Complete))
	mux.Handle("DELETE /api/conversions/{id}", approved(conversionsHandler.Cancel))

	// Stock takes.
	mux.Handle("POST /api/stocktakes", approved(stockTakesHandler.Create))
	mux.Handle("GET /api/stocktakes", approved(stockTakesHandler.List))

	// Deliveries.
	mux.Handle("POST /api/deliveries", approved(deliveriesHandler.Create))
	mux.Handle("GET /api/deliveries", approved(deliveriesHandler.List))
	mux.Handle("GET /api/deliveries/next-batch-code", approved(deliveriesHandler.NextBatchCode))
	mux.Handle("PUT /api/deliveries/{id}/receipt", approved(deliveriesHandler.UploadReceipt))
	mux.Handle("GET /api/deliveries/{id}/receipt", approved(deliveriesHandler.GetReceipt))

	return mux
}
