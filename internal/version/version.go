// Package version отдаёт сведения о сборке бинаря.
package version

import "fmt"

// Значения подставляются линковщиком через -ldflags "-X ...";
// без них остаются значения локальной разработки.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String собирает однострочное описание сборки для логов и health-ответов.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
