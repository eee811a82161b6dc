// Package storage — клиент областей data lake поверх S3-совместимого
// хранилища.
//
// Lake делится на три области (по одному bucket на область):
//   - raw     — данные как пришли от источников
//   - cleaned — данные после стандартизации
//   - curated — данные, готовые к аналитике
//
// Оркестратор использует storage для проверки наличия данных в raw
// перед запуском run: пустая raw-область означает, что запускать
// трансформации не на чем.
package storage
