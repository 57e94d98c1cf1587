package chatsync

// publishLatest escribe en un canal conflado de capacidad 1: si hay un
// valor sin consumir se reemplaza por el nuevo, igual que un StateFlow.
func publishLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
