// Command oprf-node runs a single threshold-OPRF node: local key
// generation against an in-memory reference ledger, and serving OPRF
// evaluations over HTTP once key material is available.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain/memchain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/httpapi"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/secretgen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/watcher"
)

var (
	partyID   uint16
	threshold int
	numParties int
	listenAddr string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "oprf-node",
		Short: "Run a threshold OPRF node",
	}
	root.PersistentFlags().Uint16Var(&partyID, "party-id", 0, "this node's party id")
	root.PersistentFlags().IntVar(&threshold, "threshold", 3, "reconstruction threshold t")
	root.PersistentFlags().IntVar(&numParties, "parties", 5, "total number of parties n")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(keygenCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Run a local, in-memory key generation across all n parties",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			ids := make(party.Set, numParties)
			engines := make(map[party.ID]*secretgen.Engine, numParties)
			for i := 0; i < numParties; i++ {
				ids[i] = party.ID(i)
				engines[party.ID(i)] = secretgen.New(log.Named(fmt.Sprintf("party-%d", i)))
			}

			keyID := chain.OprfKeyID(1)
			round1 := make(map[party.ID]chain.Round1Contribution, numParties)
			for _, id := range ids {
				c, err := engines[id].KeyGenRound1(keyID, threshold, id)
				if err != nil {
					return err
				}
				round1[id] = c
			}

			pks := make(map[party.ID]curve.Point, numParties)
			shareCommits := make(map[party.ID]curve.Point, numParties)
			for id, c := range round1 {
				pks[id] = c.EphemeralPubKey
				shareCommits[id] = c.ShareCommit
			}

			round2 := make(map[party.ID]chain.Round2Contribution, numParties)
			for _, id := range ids {
				counter := uint64(0)
				c, err := engines[id].ProducerRound2(keyID, id, pks, func(party.ID) curve.Fq {
					counter++
					return curve.FqFromUint64(counter)
				})
				if err != nil {
					return err
				}
				round2[id] = c
			}

			publicKey := curve.Identity()
			for _, commit := range shareCommits {
				publicKey = publicKey.Add(commit)
			}

			proofs := make(map[party.ID]dlogeq.Proof, numParties)
			for producer, c := range round2 {
				proofs[producer] = c.Proof
			}

			for _, recipient := range ids {
				ciphers := make(map[party.ID]keygen.Cipher, numParties)
				for producer, c := range round2 {
					ciphers[producer] = c.Ciphers[recipient]
				}
				if _, err := engines[recipient].Round3(keyID, recipient, ciphers, pks, proofs, keygen.FullContributions()); err != nil {
					return err
				}
				km, err := engines[recipient].Finalize(keyID, 0, publicKey)
				if err != nil {
					return err
				}
				log.Info("finished key share", zap.Int("party_id", int(recipient)), zap.Uint32("epoch", uint32(km.Epoch)))
			}

			fmt.Printf("public key: %x\n", publicKey.Bytes())
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the node's HTTP surface over an in-memory ledger and key store",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			ledger := memchain.New() // stands in for a real chain RPC connection
			s := store.New(fmt.Sprintf("node-%d", partyID))
			engine := secretgen.New(log.Named("secretgen"))
			submitter := &memchain.Submitter{Chain: ledger}
			dispatcher := secretgen.NewEventDispatcher(engine, party.ID(partyID), s, submitter, log.Named("dispatch"))

			w := watcher.New(watcher.Config{
				PartyID:   partyID,
				Source:    ledger,
				Submitter: submitter,
				Log:       log.Named("watcher"),
			})
			watchCtx, cancelWatch := context.WithCancel(context.Background())
			defer cancelWatch()
			go func() {
				if err := w.Run(watchCtx, dispatcher); err != nil && watchCtx.Err() == nil {
					log.Error("watcher stopped", zap.Error(err))
				}
			}()

			srv := &httpapi.Server{Store: s, Version: "0.1.0"}
			srv.SetReady(true)

			mux := http.NewServeMux()
			srv.Routes(mux)

			log.Info("listening", zap.String("addr", listenAddr))
			return http.ListenAndServe(listenAddr, mux)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	return cmd
}
