// Package fixture provides sample alphabet, library and tree files for tests.
package fixture

import (
	"os"
	"path/filepath"
	"testing"
)

// Alphabet declares a top-level Task class (Leaf, Composite, Decorator, Link) and a
// Condition class.
const Alphabet = `<?xml version="1.0" encoding="UTF-8"?>
<alphabet version="1.2.4" headerTree="BehaviorTree" headerLibrary="LibData">
  <class name="Task" tag="Task" libraryTag="Node" toplevel="yes" allowDebug="yes" allowInvert="yes" linkTag="BranchName" infoTag="Info">
    <state name="Active" value="0" enabled="0 200 0" disabled="0 100 0 128"/>
    <state name="Idle" value="1" enabled="200 200 200"/>
    <default_state name="Idle"/>
    <attributes tag="Settings" obligatory="no"/>
    <type name="Leaf"/>
    <type name="Composite" allowSingleBlock="yes">
      <children class="Task" min="1" max="999"/>
      <children class="Condition" min="0" max="2"/>
    </type>
    <type name="Decorator">
      <children class="Task" min="1" max="1"/>
    </type>
    <type name="Link" link="yes" targetTag="Target"/>
    <codeGenerator interface="ITask" namespace="ai" baseclass="ITask::Base" appendix="ITask::Impl">
      <include file="itask.h"/>
      <method interface="ITask" name="execute" return="bool" args="Context@ref ctx" impl="return true;|"/>
      <variable interface="ITask" type="std::vector@[int@]" name="counter"/>
    </codeGenerator>
  </class>
  <class name="Condition" tag="Condition" libraryTag="Node" allowInvert="yes">
    <state name="Normal" value="0"/>
    <attributes tag="Settings"/>
    <type name="Leaf"/>
  </class>
</alphabet>
`

// Library is the "core" node library for Alphabet.
const Library = `<?xml version="1.0" encoding="UTF-8"?>
<LibData>
  <library name="core">
    <node class="Task" type="Composite" name="Sequence">
      <children class="Task" use="yes"/>
      <children class="Condition" use="yes"/>
      <description text="Runs children in order"/>
    </node>
    <node class="Task" type="Leaf" name="MoveTo" creator="MoveToTask" debugDefault="yes">
      <description text="Moves the agent"/>
      <events>
        <incoming name="start"/>
        <outgoing name="arrived"/>
      </events>
      <attribute type="int" name="speed" default="5" min="0" max="10"/>
      <attribute type="string" name="mode" default="walk" available="walk|Walk;run|Run|fast"/>
      <array type="int" name="Path/point" min="0" max="100"/>
      <dynamic_attribute name="Tuning/param" depend_on="mode">
        <unit keys="walk" type="float" default="1.5" min="0" max="2"/>
        <unit keys="run;sprint" type="int" default="3"/>
      </dynamic_attribute>
    </node>
    <node class="Task" type="Decorator" name="Repeat">
      <children class="Task" use="yes"/>
      <attribute type="uint" name="count" default="1"/>
    </node>
    <node class="Condition" type="Leaf" name="IsNear">
      <attribute type="double" name="radius" default="2.5"/>
    </node>
  </library>
</LibData>
`

// MainTree holds two branches of main.xml: Patrol links to Approach.
const MainTree = `<?xml version="1.0" encoding="UTF-8"?>
<BehaviorTree version="1.2.4">
  <Task Type="Composite" uid="100" Lib="core" Node="Sequence" Name="Sequence" BranchName="Patrol">
    <Task Type="debug Leaf" uid="101" Lib="core" Node="MoveTo" Name="MoveTo">
      <Settings speed="7" mode="run">
        <Path>
          <point value="1"/>
          <point value="2"/>
        </Path>
        <Tuning param="4"/>
      </Settings>
    </Task>
    <Task Type="Link" uid="102" Target="Approach"/>
    <Condition Type="Leaf" uid="103" Lib="core" Node="IsNear" Name="!IsNear">
      <Settings radius="4.5"/>
    </Condition>
  </Task>
  <Task Type="Decorator" uid="200" Lib="core" Node="Repeat" Name="Repeat" BranchName="Approach">
    <Settings count="3"/>
    <Task Type="Leaf" uid="201" Lib="core" Node="MoveTo" Name="MoveTo"/>
  </Task>
</BehaviorTree>
`

// MainDiagram is the layout companion of MainTree.
const MainDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<diagram version="1.2.4">
  <item uid="100" expanded="no" hAuto="yes" vAuto="no" hx="1" hy="2" vx="3" vy="4" sceneX="10.5" sceneY="-20"/>
</diagram>
`

// Manifest is a project manifest that references the files written by WriteProject.
const Manifest = `name: sample
alphabet: alphabet.xml
libraries:
  - libs/*.xml
trees:
  - trees/**/*.xml
historyDepth: 16
`

// Write writes content to dir/name, creating parent directories.
func Write(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Paths of a project written by WriteProject.
type Paths struct {
	Dir      string
	Manifest string
	Alphabet string
	Library  string
	Tree     string
	Diagram  string
}

// WriteProject writes the alphabet, library, tree, diagram and manifest into dir.
func WriteProject(t testing.TB, dir string) Paths {
	t.Helper()
	return Paths{
		Dir:      dir,
		Alphabet: Write(t, dir, "alphabet.xml", Alphabet),
		Library:  Write(t, dir, "libs/core.xml", Library),
		Tree:     Write(t, dir, "trees/main.xml", MainTree),
		Diagram:  Write(t, dir, "trees/main.dgm", MainDiagram),
		Manifest: Write(t, dir, "sample.btproj.yaml", Manifest),
	}
}
