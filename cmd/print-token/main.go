// Command print-token performs the OAuth 2.0 password grant and prints the
// granted access token and instance URL, for use with other tooling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/peterbourgon/ff/v3"

	"sfquery"
)

func main() {

	var (
		authURL      string
		clientID     string
		clientSecret string
		username     string
		password     string
	)

	flag.StringVar(&authURL, "salesforce.authURL", "https://login.salesforce.com", "OAuth login server")
	flag.StringVar(&clientID, "salesforce.app.clientID", "", "Connected app consumer key")
	flag.StringVar(&clientSecret, "salesforce.app.clientSecret", "", "Connected app consumer secret")
	flag.StringVar(&username, "salesforce.app.username", "", "Username using the connected app")
	flag.StringVar(&password, "salesforce.app.password", "", "Password with the security token appended")

	if err := ff.Parse(flag.CommandLine, os.Args[1:], ff.WithEnvVarNoPrefix()); err != nil {
		log.Fatalf("Error parsing flags: %s", err)
	}

	session, err := sfquery.LoginPassword(
		context.Background(),
		sfquery.LoginConfig{
			AuthURL:      authURL,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Username:     username,
			Password:     password,
		},
		http.Client{ // underlying HTTP client making the token HTTP call
			Timeout: 5 * time.Second,
		},
	)
	if err != nil {
		log.Fatalf("Error getting access token from salesforce: %s", err)
	}

	fmt.Printf("%s\n%s\n", session.AccessToken, session.InstanceURL)
}
