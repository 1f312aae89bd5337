//go:build !unix

package progress

func processAlive(int) bool {
	return true
}
