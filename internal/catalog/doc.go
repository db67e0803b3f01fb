// Пакет catalog отвечает за план заказа: проверяет структуру плана
// (этапы, машины, уникальность порядка выполнения) и вычисляет целевые
// пороги выпуска из формул над параметрами заказа.
//
// Формулы — ограниченные арифметические выражения без побочных
// эффектов; область видимости ограничена Params плана. Вычисление
// выполняется один раз при создании заказа, дальше пороги неизменны.
package catalog
