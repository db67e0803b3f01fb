// Package engine содержит чистые правила производственного конвейера:
//
//   - CanStart — алгоритм допуска машины к запуску
//     (этапы строго по порядку, машины внутри этапа строго по порядку)
//   - DeriveStepStatus / NextStepIndex — вывод статуса этапа и заказа
//     из статусов машин
//   - Summarize — сборка денормализованной сводки заказа
//   - Evaluate — контроль качества расчётного выпуска
//
// Пакет не делает I/O и не знает про хранилище: все функции
// детерминированы и работают над снимком заказа в памяти.
package engine
