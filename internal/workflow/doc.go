// Пакет workflow координирует прохождение заказа по конвейеру.
//
// Engine отвечает за:
//   - Создание заказа из плана каталога (пороги выпуска, порядок машин)
//   - Запуск машины с проверкой готовности по конвейеру и прав оператора
//   - Приём батчей производственных строк с частичным применением
//   - Протокол остановки (пауза, обслуживание, жёсткая остановка, ошибка)
//   - Возобновление и завершение машины с контролем качества
//   - Пересчёт статусов этапов, сводки и финализацию заказа
//
// Engine — это «мозг» системы; сам он состояние не хранит, вся истина
// живёт в хранилище, переходы сериализуются условными записями.
package workflow
