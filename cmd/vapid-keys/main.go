// Command vapid-keys prints a fresh VAPID key pair in .env form.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/group-chat-backend/internal/push"
)

func main() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		log.Fatal().Err(err).Msg("generate VAPID keys")
	}
	fmt.Fprintf(os.Stdout, "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
}
