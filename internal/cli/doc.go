// Package cli реализует инструмент командной строки Fabrika.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Fabrika API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления заказами, машинами и справочником.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Fabrika API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	orders, err := client.ListOrders(cli.ListOrdersOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: fabrika order list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - order:     list, create, show, approve, cancel, audit
//   - machine:   start, progress, complete, stop, resume, rows, pending
//   - directory: machines, add-machine, add-operator, assign, unassign
//
// Каждая группа создаётся через фабричную функцию (NewOrderCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
