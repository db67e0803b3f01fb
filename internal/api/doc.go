// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (engine, справочник, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - order_handler.go     — обработчики для /orders
//   - machine_handler.go   — обработчики действий машин внутри заказа
//   - directory_handler.go — обработчики справочника машин и операторов
//
// API предоставляет REST endpoints для управления производственными
// заказами, действиями машин и справочником цеха.
package api
