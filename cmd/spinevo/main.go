package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/ChristopherRabotin/spinevo"
	"github.com/spf13/viper"
)

// This code reads the scenario file, evolves the spin chain and exports the expectation values.

const (
	defaultScenario = "~~unset~~"
)

var (
	scenario string
	verbose  bool
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", defaultScenario, "evolution scenario TOML file")
	flag.BoolVar(&verbose, "verbose", false, "really verbose (esp. for configuration)")
}

func main() {
	flag.Parse()
	// Load scenario
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	scenario = strings.Replace(scenario, ".toml", "", 1)
	viper.AddConfigPath(".")
	viper.SetConfigName(scenario)
	viper.SetDefault("system.name", scenario)
	viper.SetDefault("integrator.method", "trotter")
	viper.SetDefault("integrator.order", 1)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("./%s.toml: Error %s", scenario, err)
	}

	// Read system
	name := viper.GetString("system.name")
	numParticles := viper.GetInt("system.particles")
	conf := spinevo.SimulationConfig{
		NumParticles: numParticles,
		Time:         viper.GetFloat64("system.time"),
		NumTimesteps: viper.GetInt("system.timesteps"),
	}

	// Read Hamiltonian
	H, err := confReadHamiltonian(numParticles)
	if err != nil {
		log.Fatalf("could not build the Hamiltonian: %s", err)
	}
	conf.Hamiltonian = H
	if verbose {
		log.Printf("[conf] H = %s\n", H)
	}

	// Read initial state
	if viper.IsSet("initial.gates") {
		circ := spinevo.NewCircuit(numParticles)
		for _, def := range viper.GetStringSlice("initial.gates") {
			gate, err := spinevo.ParseGate(def)
			if err != nil {
				log.Fatalf("initial.gates: %s", err)
			}
			circ.Append(gate)
			if verbose {
				log.Printf("[conf] gate %s\n", gate)
			}
		}
		conf.InitialState = circ
	}

	// Read collapses
	conf.Collapse = viper.GetBool("collapse.enabled")
	conf.Lambda = viper.GetFloat64("collapse.lambda")
	conf.Seed = uint64(viper.GetInt64("collapse.seed"))
	conf.MaxCollapseAttempts = viper.GetInt("collapse.max_attempts")

	// Read integrator
	var integ spinevo.Integrator
	switch method := strings.ToLower(viper.GetString("integrator.method")); method {
	case "trotter":
		integ, err = spinevo.NewTrotterIntegrator(viper.GetInt("integrator.order"))
		if err != nil {
			log.Fatalf("integrator.order: %s", err)
		}
	case "rk4":
		integ = spinevo.RK4Integrator{}
	case "dopri":
		integ = spinevo.DopriIntegrator{AbsError: viper.GetFloat64("integrator.abs_error"), RelError: viper.GetFloat64("integrator.rel_error")}
	default:
		log.Fatalf("unknown integrator `%s`", method)
	}

	evo, err := spinevo.NewSpinEvolution(name, conf, integ)
	if err != nil {
		log.Fatal(err)
	}
	series, err := evo.Evolve()
	if err != nil {
		log.Fatal(err)
	}

	// Export
	exportConf := spinevo.ExportConfig{
		Filename:  viper.GetString("export.filename"),
		OutputDir: viper.GetString("export.output_dir"),
		AsCSV:     viper.GetBool("export.csv"),
		Collapses: viper.GetBool("export.collapses"),
		Timestamp: viper.GetBool("export.timestamp"),
	}
	if !exportConf.IsUseless() {
		files, err := spinevo.ExportSeries(exportConf, series, evo.Schedule())
		if err != nil {
			log.Fatalf("export failed: %s", err)
		}
		for _, f := range files {
			log.Printf("wrote %s", f)
		}
	}

	if verbose || exportConf.IsUseless() {
		for k, t := range series.Times {
			fmt.Printf("%.6f", t)
			for i := 0; i < series.Particles(); i++ {
				fmt.Printf(",%.9f", series.Values[i][k])
			}
			fmt.Println()
		}
	}
}

// confReadHamiltonian reads either a named model or an explicit list of Pauli terms.
func confReadHamiltonian(numParticles int) (spinevo.PauliOp, error) {
	if viper.IsSet("hamiltonian.terms") {
		var terms []spinevo.PauliTerm
		if err := viper.UnmarshalKey("hamiltonian.terms", &terms); err != nil {
			return spinevo.PauliOp{}, err
		}
		return spinevo.NewPauliOp(terms...)
	}
	J := viper.GetFloat64("hamiltonian.J")
	h := viper.GetFloat64("hamiltonian.h")
	switch model := strings.ToLower(viper.GetString("hamiltonian.model")); model {
	case "", "zero":
		return spinevo.ZeroOp(numParticles)
	case "transverse":
		return spinevo.TransverseField(numParticles, h)
	case "ising":
		return spinevo.IsingChain(numParticles, J, h)
	default:
		return spinevo.PauliOp{}, fmt.Errorf("unknown model `%s`", model)
	}
}
