// MODUL: onnx/register
// ZWECK: Registriert den ONNX Tower in der globalen Vision Registry
// INPUT: Keine
// OUTPUT: Keine
// NEBENEFFEKTE: Registriert "onnx" Factory bei Package-Import
// ABHAENGIGKEITEN: vision (DefaultRegistry)
// HINWEISE: Import mit _ "github.com/apinge/lightllm/vision/onnx"

package onnx

import (
	"github.com/apinge/lightllm/vision"
)

func init() {
	vision.RegisterToDefault("onnx", TowerFactory)
}
